// Package tlsutil builds an autocert-backed *tls.Config for the optional
// admin/metrics HTTPS endpoint, generalizing the proxy's single
// "*.latency.space" HostPolicy into a configurable host allowlist.
package tlsutil

import (
	"context"
	"crypto/tls"
	"fmt"

	"golang.org/x/crypto/acme/autocert"
)

// Manager builds autocert.Manager wired to a static set of allowed
// hostnames instead of a celestial-body-aware subdomain grammar.
func Manager(cacheDir, email string, allowHosts []string) *autocert.Manager {
	allowed := make(map[string]bool, len(allowHosts))
	for _, h := range allowHosts {
		allowed[h] = true
	}
	return &autocert.Manager{
		Cache:  autocert.DirCache(cacheDir),
		Prompt: autocert.AcceptTOS,
		Email:  email,
		HostPolicy: func(ctx context.Context, host string) error {
			if allowed[host] {
				return nil
			}
			return fmt.Errorf("tlsutil: host %q is not in the certificate allowlist", host)
		},
	}
}

// Config builds the *tls.Config the admin/metrics listener should use,
// delegating certificate selection to the supplied autocert.Manager.
func Config(manager *autocert.Manager) *tls.Config {
	return &tls.Config{
		GetCertificate: manager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
	}
}
