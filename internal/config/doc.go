// Package config loads detailq configuration: built-in defaults, an optional
// JSON file, an optional .env file and DETAILQ_* environment overrides, in
// that order.
//
// Example:
//
//	_ = config.LoadDotEnv(".env")
//	cfg, err := config.Load("/etc/detailq.json")
//	if err != nil { /* handle */ }
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil { /* handle */ }
package config
