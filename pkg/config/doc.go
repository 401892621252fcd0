// Package config defines the configuration structure for Themis and provides
// loading, defaulting, and validation.
//
// Configuration is read from a YAML file, filled in with defaults, optionally
// overridden by THEMIS_SECTION_FIELD environment variables, and validated
// before use. All validation errors are collected and reported together.
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
