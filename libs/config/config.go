// Package config loads typed service configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Load fills spec from environment variables using its envconfig tags.
func Load(spec any) error {
	return envconfig.Process("", spec)
}

// Port checks that v is a usable TCP port. name is only used in the error.
func Port(name, v string) error {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%s must be a valid TCP port (got %q)", name, v)
	}
	return nil
}

// OneOf checks that v is one of allowed.
func OneOf(name, v string, allowed ...string) error {
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s (got %q)", name, strings.Join(allowed, ", "), v)
}
