// Package config handles loading and validating Gray Logic Climate configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Upstream tokens, OAuth2 secrets and broker passwords should be set via
//     environment variables (GRAYLOGIC_UPSTREAM_TOKEN, GRAYLOGIC_OAUTH2_CLIENT_SECRET, ...)
//   - The config file should have restricted permissions (0600)
//
// Durations accept Go duration strings ("10s", "30m").
//
// Usage:
//
//	cfg, err := config.Load(config.Path())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
