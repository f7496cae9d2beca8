// Package config handles configuration loading and validation from the
// environment and an optional yaml file. It provides type-safe access
// to the settings every component needs while keeping configuration
// details separate from business logic.
package config
