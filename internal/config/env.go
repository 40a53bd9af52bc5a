package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"renderfarm/internal/pkg/errors"
)

// Env returns the trimmed value of k, or def when it is unset or blank.
func Env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// BoolEnv reads an env var as bool. If empty or invalid, returns def.
func BoolEnv(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// DurationEnv parses k with time.ParseDuration. Unlike BoolEnv a malformed
// value is an error, since silently falling back would change lease timing.
func DurationEnv(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, errors.ValidationField(k, "must be a positive duration").WithField("value", v)
	}
	return d, nil
}

// UintEnv parses k as a base-10 unsigned integer.
func UintEnv(k string, def uint64) (uint64, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.ValidationField(k, "must be an unsigned integer").WithField("value", v)
	}
	return n, nil
}

func required(k string) (string, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return "", errors.ValidationField(k, "missing required environment variable")
	}
	return v, nil
}
