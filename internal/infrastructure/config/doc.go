// Package config handles loading and validating vhtoggle configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The defaults describe a VirtualHere client on Linux sharing a
// "Wooting 60HE+" keyboard, so the tool works without any config file.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, API JWT secret) should
//     be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.DisplayName)
package config
