package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
)

// recordingSleeper captures requested delays without sleeping.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testPolicy(jitter float64, sleeper *recordingSleeper) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Jitter:      func() float64 { return jitter },
		Sleep:       sleeper.Sleep,
	}
}

func TestDo_RetryableExhaustsAttempts(t *testing.T) {
	for _, jitter := range []float64{0, 0.999999} {
		t.Run(fmt.Sprintf("jitter=%v", jitter), func(t *testing.T) {
			// ARRANGE
			sleeper := &recordingSleeper{}
			attempts := 0
			op := func(ctx context.Context) (string, error) {
				attempts++
				return "", model.NetworkError(fmt.Errorf("attempt %d", attempts))
			}

			// ACT
			_, err := Do(context.Background(), testPolicy(jitter, sleeper), op)

			// ASSERT
			if attempts != 3 {
				t.Errorf("attempts = %d, want 3", attempts)
			}
			if !errors.Is(err, model.ErrNetwork) {
				t.Fatalf("err = %v, want network error", err)
			}
			if err.Error() == "" || !containsCause(err, "attempt 3") {
				t.Errorf("expected last error to surface, got %v", err)
			}
			if len(sleeper.delays) != 2 {
				t.Fatalf("sleeps = %d, want 2", len(sleeper.delays))
			}

			var total time.Duration
			for _, d := range sleeper.delays {
				total += d
			}
			if total < time.Second || total > 4300*time.Millisecond {
				t.Errorf("total delay = %v, want within [1s, 4.3s]", total)
			}
		})
	}
}

func containsCause(err error, want string) bool {
	var e *model.Error
	return errors.As(err, &e) && e.Cause != nil && e.Cause.Error() == want
}

func TestDo_FatalErrorAbortsImmediately(t *testing.T) {
	fatal := []error{
		model.ErrValidationFailed,
		model.ErrRateLimited,
		model.NewError(model.KindKeyGenerationFailed, errors.New("secure enclave busy")),
		model.InvalidResponse(errors.New("bad timestamp")),
		model.ErrInvalidInput,
	}
	for _, want := range fatal {
		t.Run(want.Error(), func(t *testing.T) {
			sleeper := &recordingSleeper{}
			attempts := 0
			_, err := Do(context.Background(), testPolicy(0, sleeper), func(ctx context.Context) (int, error) {
				attempts++
				return 0, want
			})
			if attempts != 1 {
				t.Errorf("attempts = %d, want 1", attempts)
			}
			if !errors.Is(err, want) {
				t.Errorf("err = %v, want %v", err, want)
			}
			if len(sleeper.delays) != 0 {
				t.Errorf("fatal error should not sleep, slept %v", sleeper.delays)
			}
		})
	}
}

func TestDo_SucceedsAfterChallengeExpired(t *testing.T) {
	sleeper := &recordingSleeper{}
	attempts := 0
	got, err := Do(context.Background(), testPolicy(0, sleeper), func(ctx context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", model.ErrChallengeExpired
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || attempts != 2 {
		t.Errorf("got %q after %d attempts, want ok after 2", got, attempts)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != time.Second {
		t.Errorf("delays = %v, want [1s]", sleeper.delays)
	}
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := Do(ctx, Policy{Jitter: func() float64 { return 0 }}, func(ctx context.Context) (int, error) {
		attempts++
		return 0, model.ErrNetwork
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestPolicy_Delay(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		jitter float64
		want   time.Duration
	}{
		{"first retry no jitter", 1, 0, time.Second},
		{"second retry no jitter", 2, 0, 2 * time.Second},
		{"third retry half jitter", 3, 0.5, 4200 * time.Millisecond},
		{"capped", 10, 0, 30 * time.Second},
		{"capped with jitter", 6, 0.9, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Policy{BaseDelay: time.Second, Jitter: func() float64 { return tt.jitter }}
			if got := p.Delay(tt.n); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", model.HTTPStatusError(502), true},
		{"challenge expired", model.ErrChallengeExpired, true},
		{"wrapped network", fmt.Errorf("list features: %w", model.ErrNetwork), true},
		{"validation failed", model.ErrValidationFailed, false},
		{"configuration", model.ErrConfiguration, false},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"context canceled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
