// Package env reads ad-hoc environment variables that live outside the
// KEYLINE_-prefixed envconfig structs, such as LOG_FORMAT.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
