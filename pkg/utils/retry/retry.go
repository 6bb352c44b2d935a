package retry

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrUnknownPolicy = errors.New("unknown backoff policy")

// Policy tells how long to wait before the n-th retry.
//
// # Args
//
// - attempt: count of attempts already failed. It starts from 1.
//
// # Returns
//
// Interval before the next attempt.
type Policy func(attempt int) time.Duration

// Static waits for a fixed interval.
func Static(interval time.Duration) Policy {
	return func(int) time.Duration {
		return interval
	}
}

// Linear waits for `initial + step * (attempt - 1)`.
func Linear(initial time.Duration, step time.Duration) Policy {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return initial + step*time.Duration(attempt-1)
	}
}

// Exponential waits for `initial * r^(attempt - 1)`, but not longer than max.
//
// max <= 0 means unbounded.
func Exponential(initial time.Duration, r float64, max time.Duration) Policy {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		i := float64(initial) * math.Pow(r, float64(attempt-1))
		if 0 < max && (float64(max) < i || math.IsInf(i, 1)) {
			return max
		}
		return time.Duration(int64(i))
	}
}

// Parse builds Policy from its name.
//
// name is one of "static" (or empty), "linear" or "exponential".
// interval is the first interval. Linear grows by interval,
// exponential doubles up to 16 times interval.
func Parse(name string, interval time.Duration) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "static":
		return Static(interval), nil
	case "linear":
		return Linear(interval, interval), nil
	case "exponential":
		return Exponential(interval, 2, 16*interval), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
}
