package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the registry state applied at startup.
//
//	tokens: [cUSD, cEUR]
//	payment_methods: ["Bank Transfer", "Mobile Money"]
//	fee_bps: 50
type Seed struct {
	Tokens         []string `yaml:"tokens"`
	PaymentMethods []string `yaml:"payment_methods"`
	FeeBps         *int64   `yaml:"fee_bps"`
}

// SeedTarget receives seed entries. RegistryService satisfies it.
type SeedTarget interface {
	AddSupportedToken(caller, asset string) error
	AddPaymentMethod(caller, label string) (string, error)
	UpdateEscrowFee(caller string, bps int64) error
}

// LoadSeed reads a seed file. Unknown keys are rejected.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a YAML seed document. An empty document yields an
// empty seed.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if seed.FeeBps != nil && (*seed.FeeBps < 0 || *seed.FeeBps > 10000) {
		return nil, fmt.Errorf("parse seed file: fee_bps %d must be between 0 and 10000", *seed.FeeBps)
	}
	return &seed, nil
}

// Apply registers every entry as caller, stopping at the first rejection.
func (s *Seed) Apply(target SeedTarget, caller string) error {
	for _, asset := range s.Tokens {
		if err := target.AddSupportedToken(caller, asset); err != nil {
			return fmt.Errorf("seed token %q: %w", asset, err)
		}
	}
	for _, label := range s.PaymentMethods {
		if _, err := target.AddPaymentMethod(caller, label); err != nil {
			return fmt.Errorf("seed payment method %q: %w", label, err)
		}
	}
	if s.FeeBps != nil {
		if err := target.UpdateEscrowFee(caller, *s.FeeBps); err != nil {
			return fmt.Errorf("seed fee: %w", err)
		}
	}
	return nil
}
