// Package utils holds small environment helpers shared by config and the
// binaries.
package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the trimmed value of key, or def when unset or blank.
func GetEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// GetEnvAsBool accepts 1/true/yes and 0/false/no in any case.
func GetEnvAsBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

// GetEnvAsInt falls back to def when key is unset or not an integer.
func GetEnvAsInt(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return def
}

// GetEnvAsFloat falls back to def when key is unset or not a number.
func GetEnvAsFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64); err == nil {
		return v
	}
	return def
}

// GetEnvAsMillis reads an integer millisecond count as a duration.
func GetEnvAsMillis(key string, def time.Duration) time.Duration {
	ms := GetEnvAsInt(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// GetEnvAsSlice splits key on sep, dropping empty elements.
func GetEnvAsSlice(key string, def []string, sep string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
