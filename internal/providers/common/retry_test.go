package common_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AI-Template-SDK/senso-visibility/internal/providers/common"
)

func fastPolicy() common.RetryPolicy {
	return common.RetryPolicy{Attempts: 3, Timeout: time.Second, BaseDelay: time.Millisecond}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := common.DefaultRetryPolicy()
	if p.Attempts != 3 || p.Timeout != 30*time.Second || p.BaseDelay != 2*time.Second {
		t.Errorf("unexpected default policy: %+v", p)
	}
}

func TestRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name        string
		failures    int
		wantCalls   int
		wantErr     bool
		wantRetries int
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1},
		{name: "succeeds on third attempt", failures: 2, wantCalls: 3, wantRetries: 2},
		{name: "all attempts fail", failures: 5, wantCalls: 3, wantErr: true, wantRetries: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			observed := 0
			got, err := common.Retry(context.Background(), fastPolicy(), "test", zerolog.Nop(),
				func(op string, attempt int, err error) { observed++ },
				func(ctx context.Context) (string, error) {
					calls++
					if calls <= tt.failures {
						return "", errBoom
					}
					return "ok", nil
				})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if observed != tt.wantRetries {
				t.Errorf("observed failures = %d, want %d", observed, tt.wantRetries)
			}
			if tt.wantErr {
				if !errors.Is(err, errBoom) {
					t.Errorf("expected last error to be returned, got %v", err)
				}
				return
			}
			if err != nil || got != "ok" {
				t.Errorf("Retry() = (%q, %v), want (ok, nil)", got, err)
			}
		})
	}
}

func TestRetryPerAttemptTimeout(t *testing.T) {
	policy := common.RetryPolicy{Attempts: 2, Timeout: 20 * time.Millisecond, BaseDelay: time.Millisecond}
	calls := 0

	_, err := common.Retry(context.Background(), policy, "slow", zerolog.Nop(), nil,
		func(ctx context.Context) (int, error) {
			calls++
			<-ctx.Done()
			return 0, ctx.Err()
		})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := common.Retry(ctx, common.RetryPolicy{Attempts: 3, Timeout: time.Second, BaseDelay: time.Hour}, "cancelled", zerolog.Nop(), nil,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, ctx.Err()
		})

	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	policy := common.RetryPolicy{Attempts: 3, Timeout: time.Second, BaseDelay: 20 * time.Millisecond}
	var starts []time.Time

	_, err := common.Retry(context.Background(), policy, "schedule", zerolog.Nop(), nil,
		func(ctx context.Context) (int, error) {
			starts = append(starts, time.Now())
			return 0, errors.New("boom")
		})

	if err == nil {
		t.Fatal("expected an error")
	}
	if len(starts) != 3 {
		t.Fatalf("calls = %d, want 3", len(starts))
	}
	first := starts[1].Sub(starts[0])
	second := starts[2].Sub(starts[1])
	if first < 20*time.Millisecond {
		t.Errorf("first delay = %s, want >= 20ms", first)
	}
	if second < 40*time.Millisecond {
		t.Errorf("second delay = %s, want >= 40ms", second)
	}
	if ratio := float64(second) / float64(first); ratio < 1.5 || ratio > 3 {
		t.Errorf("second delay %s should be about twice the first %s", second, first)
	}
}
