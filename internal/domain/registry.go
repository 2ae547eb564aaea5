package domain

import (
	"sort"
	"sync"
	"sync/atomic"
)

// labelSet is a thread-safe set of string keys mapped to a supported flag.
type labelSet struct {
	mu     sync.RWMutex
	labels map[string]bool
}

func newLabelSet() labelSet {
	return labelSet{labels: make(map[string]bool)}
}

// set flips the supported flag and reports whether it changed.
func (s *labelSet) set(label string, supported bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labels[label] == supported {
		return false
	}
	s.labels[label] = supported
	return true
}

func (s *labelSet) has(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[label]
}

// list returns the supported labels sorted ascending.
func (s *labelSet) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.labels))
	for l, ok := range s.labels {
		if ok {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}

// AssetRegistry tracks which token identifiers are eligible for escrow.
// Safe for concurrent use.
type AssetRegistry struct {
	set labelSet
}

// NewAssetRegistry creates an empty AssetRegistry.
func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{set: newLabelSet()}
}

// Add marks asset as supported. Returns false if it already was.
func (r *AssetRegistry) Add(asset string) bool {
	return r.set.set(asset, true)
}

// Remove clears the supported flag. Returns false if it was not set.
func (r *AssetRegistry) Remove(asset string) bool {
	return r.set.set(asset, false)
}

// Supported reports whether asset may be escrowed.
func (r *AssetRegistry) Supported(asset string) bool {
	return r.set.has(asset)
}

// List returns every supported asset, sorted.
func (r *AssetRegistry) List() []string {
	return r.set.list()
}

// PaymentMethodRegistry tracks accepted off-chain payment method labels.
// Safe for concurrent use.
type PaymentMethodRegistry struct {
	set labelSet
}

// NewPaymentMethodRegistry creates an empty PaymentMethodRegistry.
func NewPaymentMethodRegistry() *PaymentMethodRegistry {
	return &PaymentMethodRegistry{set: newLabelSet()}
}

// Add marks label as supported. Returns false if it already was.
func (r *PaymentMethodRegistry) Add(label string) bool {
	return r.set.set(label, true)
}

// Supported reports whether label is an accepted payment method.
func (r *PaymentMethodRegistry) Supported(label string) bool {
	return r.set.has(label)
}

// List returns every supported label, sorted.
func (r *PaymentMethodRegistry) List() []string {
	return r.set.list()
}

// FeePolicy holds the protocol fee in basis points.
type FeePolicy struct {
	bps atomic.Int64
}

// NewFeePolicy creates a FeePolicy starting at bps. Out-of-range values are
// clamped into [0, MaxFeeBps].
func NewFeePolicy(bps int64) *FeePolicy {
	p := &FeePolicy{}
	p.bps.Store(clampBps(bps))
	return p
}

// Current returns the fee in basis points.
func (p *FeePolicy) Current() int64 {
	return p.bps.Load()
}

// Set replaces the fee. Callers validate the range first.
func (p *FeePolicy) Set(bps int64) {
	p.bps.Store(clampBps(bps))
}

func clampBps(bps int64) int64 {
	if bps < 0 {
		return 0
	}
	if bps > MaxFeeBps {
		return MaxFeeBps
	}
	return bps
}
