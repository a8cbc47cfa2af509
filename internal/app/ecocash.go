package app

import (
	"github.com/newrelic/go-agent/v3/newrelic"

	"ecocash/internal/config"
	"ecocash/internal/ecocash"
)

// NewEcoCashClient creates the provider client. With New Relic enabled, provider
// calls are recorded as external segments of the current transaction.
func NewEcoCashClient(cfg config.EcoCashConfig, nrApp *newrelic.Application) *ecocash.Client {
	clientCfg := ecocash.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		Sandbox:         cfg.Sandbox,
		InitiateTimeout: cfg.InitiateTimeout,
		LookupTimeout:   cfg.LookupTimeout,
	}

	if nrApp != nil {
		return ecocash.NewClient(clientCfg, newrelic.NewRoundTripper(nil))
	}

	return ecocash.NewClient(clientCfg, nil)
}
