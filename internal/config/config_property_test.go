package config

import (
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// validLogLevels are the accepted log level values.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// durationDefaults are the defaults of every duration key.
var durationDefaults = map[string]time.Duration{
	ReadTimeoutKey:          5 * time.Second,
	WriteTimeoutKey:         10 * time.Second,
	IdleTimeoutKey:          60 * time.Second,
	ShutdownTimeoutKey:      10 * time.Second,
	WebhookTimeoutKey:       5 * time.Second,
	TokenTTLKey:             24 * time.Hour,
	DisputeTimeoutKey:       0,
	DisputeCheckIntervalKey: time.Second,
}

// resetEnv clears every config env var and sets the required ones.
func resetEnv() {
	for _, key := range Keys {
		os.Unsetenv(key)
	}
	os.Setenv(JWTSecretKey, testSecret)
	os.Setenv(OperatorsKey, "ops")
}

// genDurationString generates a valid positive Go duration string (e.g. "3s", "500ms", "2m").
func genDurationString() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		unit := rapid.SampledFrom([]string{"ms", "s", "m"}).Draw(t, "unit")
		val := rapid.IntRange(1, 600).Draw(t, "val")
		return fmt.Sprintf("%d%s", val, unit)
	})
}

func TestProperty_ValidConfigParsing(t *testing.T) {
	clearEnv(t)

	rapid.Check(t, func(t *rapid.T) {
		resetEnv()

		port := rapid.OneOf(rapid.Just(0), rapid.IntRange(1, 65535)).Draw(t, "port")
		logLevel := rapid.OneOf(rapid.Just(""), rapid.SampledFrom(validLogLevels)).Draw(t, "logLevel")
		fee := rapid.OneOf(rapid.Just(-1), rapid.IntRange(0, 10000)).Draw(t, "fee")

		durStrs := make(map[string]string, len(durationDefaults))
		for _, key := range durationKeys {
			durStrs[key] = rapid.OneOf(rapid.Just(""), genDurationString()).Draw(t, key)
		}

		if port != 0 {
			os.Setenv(PortKey, strconv.Itoa(port))
		}
		if logLevel != "" {
			os.Setenv(LogLevelKey, logLevel)
		}
		if fee >= 0 {
			os.Setenv(EscrowFeeBpsKey, strconv.Itoa(fee))
		}
		for key, s := range durStrs {
			if s != "" {
				os.Setenv(key, s)
			}
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned error for valid inputs: %v", err)
		}

		wantPort := 8080
		if port != 0 {
			wantPort = port
		}
		if cfg.Port != wantPort {
			t.Fatalf("Port = %d, want %d", cfg.Port, wantPort)
		}

		wantLevel := "info"
		if logLevel != "" {
			wantLevel = logLevel
		}
		if cfg.LogLevel != wantLevel {
			t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, wantLevel)
		}

		wantFee := int64(0)
		if fee >= 0 {
			wantFee = int64(fee)
		}
		if cfg.EscrowFeeBps != wantFee {
			t.Fatalf("EscrowFeeBps = %d, want %d", cfg.EscrowFeeBps, wantFee)
		}

		got := map[string]time.Duration{
			ReadTimeoutKey:          cfg.ReadTimeout,
			WriteTimeoutKey:         cfg.WriteTimeout,
			IdleTimeoutKey:          cfg.IdleTimeout,
			ShutdownTimeoutKey:      cfg.ShutdownTimeout,
			WebhookTimeoutKey:       cfg.WebhookTimeout,
			TokenTTLKey:             cfg.TokenTTL,
			DisputeTimeoutKey:       cfg.DisputeTimeout,
			DisputeCheckIntervalKey: cfg.DisputeCheckInterval,
		}
		for key, def := range durationDefaults {
			want := def
			if durStrs[key] != "" {
				want, _ = time.ParseDuration(durStrs[key])
			}
			if got[key] != want {
				t.Fatalf("%s = %v, want %v (env=%q)", key, got[key], want, durStrs[key])
			}
		}
	})
}

func TestProperty_FeeOutOfRangeReturnsError(t *testing.T) {
	clearEnv(t)

	rapid.Check(t, func(t *rapid.T) {
		resetEnv()

		fee := rapid.OneOf(
			rapid.IntRange(-1_000_000, -1),
			rapid.IntRange(10001, 1_000_000),
		).Draw(t, "fee")
		os.Setenv(EscrowFeeBpsKey, strconv.Itoa(fee))

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for %s=%d", EscrowFeeBpsKey, fee)
		}
	})
}

func TestProperty_InvalidLogLevelReturnsError(t *testing.T) {
	clearEnv(t)

	rapid.Check(t, func(t *rapid.T) {
		resetEnv()

		invalidLevel := rapid.StringMatching(`[a-z]{1,20}`).Filter(func(s string) bool {
			for _, v := range validLogLevels {
				if s == v {
					return false
				}
			}
			return true
		}).Draw(t, "invalidLevel")
		os.Setenv(LogLevelKey, invalidLevel)

		if _, err := Load(); err == nil {
			t.Fatalf("Load() should return error for invalid LOG_LEVEL %q", invalidLevel)
		}
	})
}

func TestProperty_InvalidDurationReturnsError(t *testing.T) {
	for _, key := range durationKeys {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)

			rapid.Check(t, func(t *rapid.T) {
				resetEnv()

				invalidDur := rapid.OneOf(
					rapid.StringMatching(`[a-zA-Z]{2,10}`),
					rapid.Just("5x"),
					rapid.Just("abc123"),
				).Filter(func(s string) bool {
					_, err := time.ParseDuration(s)
					return err != nil
				}).Draw(t, "invalidDuration")
				os.Setenv(key, invalidDur)

				if _, err := Load(); err == nil {
					t.Fatalf("Load() should return error for invalid %s=%q", key, invalidDur)
				}
			})
		})
	}
}
