// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// Credentials are never read from the file: they come from the environment
// (optionally via a local .env file) and stay out of serialized output.
package config
