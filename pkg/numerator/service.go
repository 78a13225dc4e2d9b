// Package numerator provides document auto-numbering.
// Numbers come from the sys_sequences table via UPSERT + RETURNING.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPDATE ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	// Slower, suitable for fiscal documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if the application restarts.
	// Suitable for orders and returns.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering functionality.
type Service struct {
	querier Querier

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a new numerator service.
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "ORD", "RET")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// GetNextNumber generates the next document number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., ORD-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	if opts == nil {
		opts = DefaultOptions()
	}

	key := s.buildKey(cfg, period)
	var num int64
	var err error

	switch opts.Strategy {
	case StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	case StrategyStrict:
		fallthrough
	default:
		num, err = s.getNextStrict(ctx, key)
	}

	if err != nil {
		return "", err
	}

	return s.formatNumber(cfg, period, num), nil
}

// getNextStrict fetches the next number directly from DB using UPSERT + RETURNING.
func (s *Service) getNextStrict(ctx context.Context, key string) (int64, error) {
	var num int64

	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)

	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// getNextCached fetches next number from memory, refilling from DB if needed.
func (s *Service) getNextCached(ctx context.Context, key string, opts *Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		// current_val tracks the last allocated number, so bumping it by
		// size reserves the range (old_val+1 .. new_val)
		var newMax int64
		err := s.querier.QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val
		`, key, size).Scan(&newMax)

		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the current sequence value (for migrations).
func (s *Service) SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error {
	key := s.buildKey(cfg, period)

	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	return err
}

// buildKey creates the sequence key based on config and period.
func (s *Service) buildKey(cfg Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// formatNumber creates the final number string.
func (s *Service) formatNumber(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	var num int64
	patterns := []string{
		"%*[^-]-%*d-%d",
		"%*[^-]-%d",
	}

	for _, pattern := range patterns {
		if _, err := fmt.Sscanf(formatted, pattern, &num); err == nil {
			return num
		}
	}

	return -1
}
