package service

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// ReferenceGenerator produces correlation references for payment attempts.
type ReferenceGenerator struct {
	Reader io.Reader
}

// NewReferenceGenerator creates a generator backed by crypto/rand.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{Reader: rand.Reader}
}

// New returns a random version 4 UUID in canonical text form.
func (g *ReferenceGenerator) New() (string, error) {
	reader := g.Reader
	if reader == nil {
		reader = rand.Reader
	}

	id, err := uuid.NewRandomFromReader(reader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropySourceUnavailable, err)
	}

	return id.String(), nil
}
