package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/spf13/viper"
)

const (
	PortKey                  = "PORT"
	LogLevelKey              = "LOG_LEVEL"
	ReadTimeoutKey           = "READ_TIMEOUT"
	WriteTimeoutKey          = "WRITE_TIMEOUT"
	IdleTimeoutKey           = "IDLE_TIMEOUT"
	ShutdownTimeoutKey       = "SHUTDOWN_TIMEOUT"
	WebhookTimeoutKey        = "WEBHOOK_TIMEOUT"
	WebhookRateKey           = "WEBHOOK_RATE"
	JWTSecretKey             = "JWT_SECRET"
	TokenTTLKey              = "TOKEN_TTL"
	OperatorsKey             = "OPERATORS"
	ArbitersKey              = "ARBITERS"
	TreasuryAccountKey       = "TREASURY_ACCOUNT"
	CustodyAccountKey        = "CUSTODY_ACCOUNT"
	EscrowFeeBpsKey          = "ESCROW_FEE_BPS"
	AllowLockedCancelKey     = "ALLOW_LOCKED_CANCEL"
	DisputeTimeoutKey        = "DISPUTE_TIMEOUT"
	DisputeTimeoutOutcomeKey = "DISPUTE_TIMEOUT_OUTCOME"
	DisputeCheckIntervalKey  = "DISPUTE_CHECK_INTERVAL"
	SeedFileKey              = "SEED_FILE"
	EventLogSizeKey          = "EVENT_LOG_SIZE"
)

// durationKeys are parsed with time.ParseDuration.
var durationKeys = []string{
	ReadTimeoutKey, WriteTimeoutKey, IdleTimeoutKey, ShutdownTimeoutKey,
	WebhookTimeoutKey, TokenTTLKey, DisputeTimeoutKey, DisputeCheckIntervalKey,
}

// Keys lists every environment variable Load reads.
var Keys = []string{
	PortKey, LogLevelKey, ReadTimeoutKey, WriteTimeoutKey, IdleTimeoutKey,
	ShutdownTimeoutKey, WebhookTimeoutKey, WebhookRateKey, JWTSecretKey, TokenTTLKey,
	OperatorsKey, ArbitersKey, TreasuryAccountKey, CustodyAccountKey, EscrowFeeBpsKey,
	AllowLockedCancelKey, DisputeTimeoutKey, DisputeTimeoutOutcomeKey,
	DisputeCheckIntervalKey, SeedFileKey, EventLogSizeKey,
}

// Config holds all runtime configuration for the escrow daemon.
type Config struct {
	Port            int
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	WebhookTimeout time.Duration
	// WebhookRate caps outbound deliveries per second. Zero disables the cap.
	WebhookRate int

	JWTSecret string
	TokenTTL  time.Duration

	Operators []string
	// Arbiters resolve disputes. Operators arbitrate when it is empty.
	Arbiters []string

	TreasuryAccount   string
	CustodyAccount    string
	EscrowFeeBps      int64
	AllowLockedCancel bool

	// DisputeTimeout auto-resolves disputes older than it. Zero disables.
	DisputeTimeout        time.Duration
	DisputeTimeoutOutcome domain.DisputeOutcome
	DisputeCheckInterval  time.Duration

	SeedFile     string
	EventLogSize int
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(PortKey, 8080)
	v.SetDefault(LogLevelKey, "info")
	v.SetDefault(ReadTimeoutKey, "5s")
	v.SetDefault(WriteTimeoutKey, "10s")
	v.SetDefault(IdleTimeoutKey, "60s")
	v.SetDefault(ShutdownTimeoutKey, "10s")
	v.SetDefault(WebhookTimeoutKey, "5s")
	v.SetDefault(WebhookRateKey, 50)
	v.SetDefault(TokenTTLKey, "24h")
	v.SetDefault(TreasuryAccountKey, "treasury")
	v.SetDefault(CustodyAccountKey, "escrow")
	v.SetDefault(EscrowFeeBpsKey, 0)
	v.SetDefault(AllowLockedCancelKey, true)
	v.SetDefault(DisputeTimeoutKey, "0s")
	v.SetDefault(DisputeTimeoutOutcomeKey, string(domain.OutcomeCancel))
	v.SetDefault(DisputeCheckIntervalKey, "1s")
	v.SetDefault(EventLogSizeKey, 10000)
	return v
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	v := newViper()

	// viper's typed getters swallow parse errors, so raw strings are parsed here.
	port, err := getInt(v, PortKey)
	if err != nil {
		return nil, err
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid %s: %d, must be between 1 and 65535", PortKey, port)
	}

	logLevel := strings.ToLower(v.GetString(LogLevelKey))
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid %s: %q, must be one of: debug, info, warn, error", LogLevelKey, logLevel)
	}

	durations := make(map[string]time.Duration, len(durationKeys))
	for _, key := range durationKeys {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = d
	}
	if durations[DisputeCheckIntervalKey] == 0 {
		return nil, fmt.Errorf("invalid %s: must be positive", DisputeCheckIntervalKey)
	}

	webhookRate, err := getInt(v, WebhookRateKey)
	if err != nil {
		return nil, err
	}
	if webhookRate < 0 {
		return nil, fmt.Errorf("invalid %s: must not be negative", WebhookRateKey)
	}

	secret := v.GetString(JWTSecretKey)
	if len(secret) < auth.MinSecretLength {
		return nil, fmt.Errorf("invalid %s: must be at least %d bytes", JWTSecretKey, auth.MinSecretLength)
	}

	operators := splitList(v.GetString(OperatorsKey))
	if len(operators) == 0 {
		return nil, fmt.Errorf("invalid %s: at least one operator identity is required", OperatorsKey)
	}
	arbiters := splitList(v.GetString(ArbitersKey))

	treasury := strings.TrimSpace(v.GetString(TreasuryAccountKey))
	custodyID := strings.TrimSpace(v.GetString(CustodyAccountKey))
	if treasury == "" {
		return nil, fmt.Errorf("invalid %s: must not be empty", TreasuryAccountKey)
	}
	if custodyID == "" {
		return nil, fmt.Errorf("invalid %s: must not be empty", CustodyAccountKey)
	}
	if treasury == custodyID {
		return nil, fmt.Errorf("invalid %s: must differ from %s", TreasuryAccountKey, CustodyAccountKey)
	}

	feeBps, err := getInt(v, EscrowFeeBpsKey)
	if err != nil {
		return nil, err
	}
	if feeBps < 0 || feeBps > 10000 {
		return nil, fmt.Errorf("invalid %s: %d, must be between 0 and 10000", EscrowFeeBpsKey, feeBps)
	}

	allowLockedCancel, err := strconv.ParseBool(v.GetString(AllowLockedCancelKey))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", AllowLockedCancelKey, err)
	}

	outcome := domain.DisputeOutcome(strings.ToLower(strings.TrimSpace(v.GetString(DisputeTimeoutOutcomeKey))))
	if !outcome.Valid() {
		return nil, fmt.Errorf("invalid %s: %q, must be one of: complete, cancel", DisputeTimeoutOutcomeKey, outcome)
	}

	eventLogSize, err := getInt(v, EventLogSizeKey)
	if err != nil {
		return nil, err
	}
	if eventLogSize < 1 {
		return nil, fmt.Errorf("invalid %s: must be positive", EventLogSizeKey)
	}

	return &Config{
		Port:                  port,
		LogLevel:              logLevel,
		ReadTimeout:           durations[ReadTimeoutKey],
		WriteTimeout:          durations[WriteTimeoutKey],
		IdleTimeout:           durations[IdleTimeoutKey],
		ShutdownTimeout:       durations[ShutdownTimeoutKey],
		WebhookTimeout:        durations[WebhookTimeoutKey],
		WebhookRate:           webhookRate,
		JWTSecret:             secret,
		TokenTTL:              durations[TokenTTLKey],
		Operators:             operators,
		Arbiters:              arbiters,
		TreasuryAccount:       treasury,
		CustodyAccount:        custodyID,
		EscrowFeeBps:          int64(feeBps),
		AllowLockedCancel:     allowLockedCancel,
		DisputeTimeout:        durations[DisputeTimeoutKey],
		DisputeTimeoutOutcome: outcome,
		DisputeCheckInterval:  durations[DisputeCheckIntervalKey],
		SeedFile:              strings.TrimSpace(v.GetString(SeedFileKey)),
		EventLogSize:          eventLogSize,
	}, nil
}

// Policy builds the role policy. Operators also arbitrate when no arbiter
// is configured.
func (c *Config) Policy() *domain.RolePolicy {
	arbiters := c.Arbiters
	if len(arbiters) == 0 {
		arbiters = c.Operators
	}
	return domain.NewRolePolicy(map[domain.Role][]string{
		domain.RoleOperator: c.Operators,
		domain.RoleArbiter:  arbiters,
	})
}

// Arbiter is the identity the auto-resolver acts as.
func (c *Config) Arbiter() string {
	if len(c.Arbiters) > 0 {
		return c.Arbiters[0]
	}
	return c.Operators[0]
}

func getInt(v *viper.Viper, key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma separated list, dropping blanks and duplicates.
func splitList(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := seen[part]; ok {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
