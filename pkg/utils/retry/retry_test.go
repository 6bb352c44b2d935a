package retry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/poec-forensics/console/pkg/utils/retry"
)

func TestPolicy(t *testing.T) {
	type when struct {
		policy   retry.Policy
		attempts []int
	}

	theory := func(when when, then []time.Duration) func(*testing.T) {
		return func(t *testing.T) {
			for i, a := range when.attempts {
				if actual := when.policy(a); actual != then[i] {
					t.Errorf("attempt %d: (actual, expected) = (%s, %s)", a, actual, then[i])
				}
			}
		}
	}

	t.Run("Static always waits the same interval", theory(
		when{policy: retry.Static(5 * time.Second), attempts: []int{1, 2, 19}},
		[]time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second},
	))
	t.Run("Linear grows by step", theory(
		when{policy: retry.Linear(time.Second, 2*time.Second), attempts: []int{1, 2, 3}},
		[]time.Duration{time.Second, 3 * time.Second, 5 * time.Second},
	))
	t.Run("Exponential multiplies and caps", theory(
		when{policy: retry.Exponential(time.Second, 2, 5*time.Second), attempts: []int{1, 2, 3, 4, 100}},
		[]time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second},
	))
}

func TestParse(t *testing.T) {
	// interval before the 2nd retry
	for name, expected := range map[string]time.Duration{
		"":            time.Second,
		"static":      time.Second,
		"Linear":      2 * time.Second,
		"exponential": 2 * time.Second,
	} {
		p, err := retry.Parse(name, time.Second)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if actual := p(2); actual != expected {
			t.Errorf("%q: (actual, expected) = (%s, %s)", name, actual, expected)
		}
	}

	if _, err := retry.Parse("fibonacci", time.Second); !errors.Is(err, retry.ErrUnknownPolicy) {
		t.Errorf("unexpected error: %v", err)
	}
}
