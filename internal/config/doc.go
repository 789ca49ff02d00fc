// Package config loads, validates, and persists serverkeeper settings.
//
// Settings live in a YAML file; the GitHub token deliberately stays out of it
// and is read from the environment instead.
package config
