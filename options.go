package permit

import (
	"fmt"
	"time"

	"github.com/permithq/permit/logger"
)

// EngineOption customizes an Engine at construction time.
type EngineOption func(*Engine) error

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalid)
		}
		e.logger = l
		return nil
	}
}

// WithEvaluator plugs in the dynamic expression evaluator. Without one,
// dynamic permissions are skipped entirely.
func WithEvaluator(ev ExpressionEvaluator) EngineOption {
	return func(e *Engine) error {
		e.evaluator = ev
		return nil
	}
}

// WithCache replaces the default ristretto decision cache.
func WithCache(c Cache) EngineOption {
	return func(e *Engine) error {
		if c == nil {
			return fmt.Errorf("%w: nil cache", ErrInvalid)
		}
		e.cache = c
		return nil
	}
}

// WithEpochSource replaces the in-process epoch counters, typically with
// the redis-backed source when several engine instances share stores.
func WithEpochSource(s EpochSource) EngineOption {
	return func(e *Engine) error {
		if s == nil {
			return fmt.Errorf("%w: nil epoch source", ErrInvalid)
		}
		e.epochs = s
		return nil
	}
}

// WithDecisionTTL overrides how long final decisions are memoized.
func WithDecisionTTL(d time.Duration) EngineOption {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("%w: decision ttl must be positive", ErrInvalid)
		}
		e.decisionTTL = d
		return nil
	}
}

// WithAggregationTTL overrides how long aggregated permission sets are
// memoized.
func WithAggregationTTL(d time.Duration) EngineOption {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("%w: aggregation ttl must be positive", ErrInvalid)
		}
		e.aggregationTTL = d
		return nil
	}
}

// WithClock fixes the time source, mainly for tests exercising validity
// windows.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalid)
		}
		e.clock = now
		return nil
	}
}
