// Package env reads the few settings that must exist before config.Load runs, such as
// the log format. Every key is looked up as ORDERSYNC_<key> first, then bare.
package env

import (
	"os"
	"strconv"
	"strings"
)

// Prefix matches the envconfig prefix used by pkg/config.
const Prefix = "ORDERSYNC_"

// Lookup returns the trimmed value of Prefix+key, else of key.
func Lookup(key string) (string, bool) {
	for _, name := range []string{Prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val, true
		}
	}
	return "", false
}

// Get returns the value for key or fallback.
func Get(key, fallback string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return fallback
}

// Bool parses a boolean variable, returning fallback when unset or malformed.
func Bool(key string, fallback bool) bool {
	raw, ok := Lookup(key)
	if !ok {
		return fallback
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return val
}
