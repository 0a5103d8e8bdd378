// Package config loads and validates the bridge configuration.
//
// Configuration comes from a YAML file, overridden by environment
// variables. The Rachio API key is environment-only (RACHIO_API_KEY);
// other secrets such as MQTT and InfluxDB credentials should also be
// supplied via RACHIOBRIDGE_* variables rather than the file.
//
// Loading happens once at startup:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Validation runs after overrides are applied, so a file missing a value
// that the environment supplies is still valid.
package config
