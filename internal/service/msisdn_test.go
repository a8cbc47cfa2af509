package service

import (
	"errors"
	"testing"
)

func TestNormalizeMSISDN(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
		wantErr  bool
	}{
		{"0771234567", "263771234567", false},
		{"+263 77 123 4567", "263771234567", false},
		{"2630771234567", "263771234567", false},
		{"263771234567", "263771234567", false},
		{"(077) 123-4567", "263771234567", false},
		{"0781234567", "263781234567", false},
		{"26307712345", "", true},
		{"123", "", true},
		{"", "", true},
		{"0241234567", "", true},
		{"07712345678", "", true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeMSISDN(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPhoneNumber) {
					t.Errorf("expected ErrInvalidPhoneNumber, got %q %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
			if len(got) != 12 {
				t.Errorf("expected 12 digits, got %d", len(got))
			}
		})
	}
}

func TestIsValidMSISDN(t *testing.T) {
	if !IsValidMSISDN("0771234567") {
		t.Error("expected local number to be valid")
	}
	if IsValidMSISDN("abc") {
		t.Error("expected letters to be invalid")
	}
}
