// Package config loads and validates the BAES core configuration.
//
// Values come from, in increasing priority: built-in defaults, the YAML
// file, a .env file beside it, and BAES_* environment variables. Secrets
// (JWT secret, broker and InfluxDB credentials) are expected to arrive
// through the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
package config
