package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v6"
)

func String(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func RequiredString(key string) (string, error) {
	v := String(key, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// Port validates a TCP port read from key.
func Port(key, fallback string) (string, error) {
	v := String(key, fallback)
	if err := checkPort(v); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// Parse fills a struct from the environment using `env` tags and runs its
// Validate method when present.
func Parse(dst any) error {
	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v, ok := dst.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// CheckPort reports whether v is a usable TCP port.
func CheckPort(v string) error {
	return checkPort(v)
}

func checkPort(v string) error {
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("must be a valid TCP port (got %q)", v)
	}
	return nil
}

// List splits a comma separated value, dropping blanks.
func List(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
