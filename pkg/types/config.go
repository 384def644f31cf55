package types

import (
	"errors"
	"time"
)

// Config holds tuning parameters for the identity engine. Cache sizes
// affect memory and hit rate, not correctness.
// Implements: prd001-entity-identity R6.
type Config struct {
	DataDir  string `json:"data_dir" yaml:"data_dir"`
	Language string `json:"language" yaml:"language"` // BCP-47 tag for collation.

	IDCacheSize          int `json:"id_cache_size" yaml:"id_cache_size"`
	SortCacheSize        int `json:"sort_cache_size" yaml:"sort_cache_size"`
	LookupCacheSize      int `json:"lookup_cache_size" yaml:"lookup_cache_size"`
	TableHashCacheSize   int `json:"table_hash_cache_size" yaml:"table_hash_cache_size"`
	SequenceMapCacheSize int `json:"sequence_map_cache_size" yaml:"sequence_map_cache_size"`

	// SemanticDataCacheSize bounds the in-process tier of whole
	// per-subject property result sets.
	SemanticDataCacheSize int `json:"semantic_data_cache_size" yaml:"semantic_data_cache_size"`

	// WarmUpThreshold is the minimum distinct uncached batch size that
	// triggers a bulk prefetch; below it the per-item path is cheap
	// enough.
	WarmUpThreshold int `json:"warm_up_threshold" yaml:"warm_up_threshold"`

	// SemanticDataTTL bounds persistent per-table stub cache entries;
	// ReverseLookupTTL bounds the shorter-lived by-ID (reverse) lookup
	// cache entries.
	SemanticDataTTL  time.Duration `json:"semantic_data_ttl" yaml:"semantic_data_ttl"`
	ReverseLookupTTL time.Duration `json:"reverse_lookup_ttl" yaml:"reverse_lookup_ttl"`

	// RedirectShortCircuitTTL bounds how long a cached "known redirect"
	// zero-ID entry may be served before the store is consulted again.
	// The short-circuit is eventually consistent; this makes the window
	// explicit.
	RedirectShortCircuitTTL time.Duration `json:"redirect_short_circuit_ttl" yaml:"redirect_short_circuit_ttl"`
}

// Config validation errors (prd001-entity-identity R6.2).
var (
	ErrCacheSizeInvalid = errors.New("cache size must be positive")
	ErrTTLInvalid       = errors.New("ttl must be positive")
	ErrThresholdInvalid = errors.New("warm-up threshold must not be negative")
)

// DefaultConfig returns the tuning defaults.
func DefaultConfig() Config {
	return Config{
		Language:                "en",
		IDCacheSize:             2000,
		SortCacheSize:           2000,
		LookupCacheSize:         1000,
		TableHashCacheSize:      500,
		SequenceMapCacheSize:    500,
		SemanticDataCacheSize:   20,
		WarmUpThreshold:         3,
		SemanticDataTTL:         7 * 24 * time.Hour,
		ReverseLookupTTL:        5 * time.Minute,
		RedirectShortCircuitTTL: 5 * time.Minute,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	sizes := []int{
		c.IDCacheSize, c.SortCacheSize, c.LookupCacheSize,
		c.TableHashCacheSize, c.SequenceMapCacheSize, c.SemanticDataCacheSize,
	}
	for _, n := range sizes {
		if n <= 0 {
			return ErrCacheSizeInvalid
		}
	}
	if c.WarmUpThreshold < 0 {
		return ErrThresholdInvalid
	}
	if c.SemanticDataTTL <= 0 || c.ReverseLookupTTL <= 0 || c.RedirectShortCircuitTTL <= 0 {
		return ErrTTLInvalid
	}
	return nil
}
