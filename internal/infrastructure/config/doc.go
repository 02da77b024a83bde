// Package config loads and validates Keylock Core configuration.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by KEYLOCK_* environment variables. Secrets
// (MQTT credentials, JWT secret, InfluxDB token) should always come from
// the environment in production deployments.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
package config
