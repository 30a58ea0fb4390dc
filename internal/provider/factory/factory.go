// Package factory resolves the active upstream client from configuration.
// Selection happens exactly once at startup; handlers receive the resulting
// client and never re-resolve per request.
package factory

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"aigateway/internal/config"
	"aigateway/internal/provider"
	"aigateway/internal/provider/digitalocean"
	"aigateway/internal/provider/openai"
)

const (
	defaultHTTPTimeout     = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// New builds the upstream client for the configured provider. Azure endpoints
// that do not look Azure-hosted fall back to the generic OpenAI-compatible
// flavour, matching how the deployment behaves with bring-your-own endpoints.
func New(cfg config.Config) (provider.Client, error) {
	httpClient := newHTTPClient(defaultHTTPTimeout)

	switch cfg.Provider {
	case config.ProviderDigitalOcean:
		slog.Info("using DigitalOcean inference API", "endpoint", cfg.DigitalOcean.Endpoint)
		return digitalocean.New(cfg.DigitalOcean, httpClient), nil
	case config.ProviderAzure:
		if strings.Contains(strings.ToLower(cfg.Azure.Endpoint), "azure") {
			slog.Info("using Azure OpenAI", "endpoint", cfg.Azure.Endpoint)
			return openai.NewAzure(cfg.Azure, httpClient), nil
		}
		slog.Info("using OpenAI-compatible API", "endpoint", cfg.Azure.Endpoint)
		return openai.New(cfg.Azure, httpClient), nil
	default:
		return nil, fmt.Errorf("invalid provider %q: must be %q or %q",
			cfg.Provider, config.ProviderAzure, config.ProviderDigitalOcean)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
