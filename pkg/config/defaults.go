package config

import (
	"strings"

	"github.com/sdu-escience/gridgate/pkg/grid"
)

// Default values for optional keys.
const (
	DefaultLogLevel    = "INFO"
	DefaultCatalogType = "memory"
	DefaultContentType = "memory"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Empty strings are replaced with defaults
//   - Explicit values are preserved, enum values are normalized to the
//     case the validator expects
func ApplyDefaults(cfg *Configuration) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Zone = strings.Trim(strings.TrimSpace(cfg.Zone), "/")

	if cfg.SSLPolicy == "" {
		cfg.SSLPolicy = string(grid.SSLDontCare)
	}
	cfg.SSLPolicy = strings.ToUpper(cfg.SSLPolicy)

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = string(grid.AuthStandard)
	}
	cfg.AuthScheme = strings.ToUpper(cfg.AuthScheme)

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)

	if cfg.CommandRateLimit > 0 && cfg.CommandBurst == 0 {
		cfg.CommandBurst = cfg.CommandRateLimit
	}

	applyBackendDefaults(&cfg.Backend)
}

// applyBackendDefaults selects the in-memory stores when none is named.
func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Catalog.Type == "" {
		cfg.Catalog.Type = DefaultCatalogType
	}
	cfg.Catalog.Type = strings.ToLower(cfg.Catalog.Type)

	if cfg.Content.Type == "" {
		cfg.Content.Type = DefaultContentType
	}
	cfg.Content.Type = strings.ToLower(cfg.Content.Type)

	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}
