package fetch

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOptionsValidate(t *testing.T) {
	cases := []struct {
		name    string
		options Options
		field   string
	}{
		{"valid", Options{Trials: 1}, ""},
		{"no timeout", Options{Timeout: 0, Trials: 3}, ""},
		{"negative timeout", Options{Timeout: -time.Second, Trials: 1}, "timeout"},
		{"zero trials", Options{Trials: 0}, "trials"},
		{"negative trials", Options{Trials: -2}, "trials"},
		{"negative limit", Options{Trials: 1, MaxBytes: -1}, "max_bytes"},
	}

	for _, tc := range cases {
		err := tc.options.Validate()
		if tc.field == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.name, err)
			}
			continue
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected ConfigError, got %v", tc.name, err)
		}
		if cfgErr.Field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, cfgErr.Field)
		}
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := Options{Trials: 0}.Validate()
	if err == nil || !strings.Contains(err.Error(), "illegal number of trials (0)") {
		t.Fatalf("unexpected message: %v", err)
	}
}
