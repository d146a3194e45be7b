// Package config loads simple-auth settings from the environment.
//
// Every section is a plain struct with cleanenv tags, so a deployment can be
// configured entirely through environment variables or an optional .env file:
//
//	cfg, err := config.Load(".env")
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// Storage backends are picked per store with USER_STORE, TOKEN_STORE and
// TWOFA_STORE. Each value is handed to the matching repository factory.
package config
