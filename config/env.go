package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer when it is set.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key as a time.Duration ("1.5s", "300ms") when it is set.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// EnvBool parses key as a boolean when it is set.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// ApplyEnv overlays HAL_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("HAL_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvString("HAL_DB"); ok {
		c.DBPath = v
	}
	if v, ok := EnvString("HAL_SCHEMA"); ok {
		c.Schema = strings.ToLower(v)
	}
	if v, ok := EnvString("HAL_TYPES"); ok {
		c.Categories = SplitList(v)
	}
	if v, ok := EnvString("HAL_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := EnvString("HAL_LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if n, ok, err := EnvInt("HAL_MAX_ATTEMPTS"); err != nil {
		return err
	} else if ok {
		c.MaxAttempts = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"HAL_TIMEOUT", &c.Timeout},
		{"HAL_RETRY_BACKOFF", &c.RetryBackoff},
		{"HAL_DELAY", &c.Delay},
		{"HAL_RANDOM_DELAY", &c.RandomDelay},
	}
	for _, d := range durations {
		if v, ok, err := EnvDuration(d.key); err != nil {
			return err
		} else if ok {
			*d.dst = v
		}
	}

	if b, ok, err := EnvBool("HAL_SKIP_EXISTING"); err != nil {
		return err
	} else if ok {
		c.SkipExisting = b
	}
	return nil
}

// SplitList splits a comma separated list, dropping blank entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
