package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func failN(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = b.Call(context.Background(), func(context.Context) error { return errUpstream })
	}
}

func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b := New("census", Config{FailureThreshold: 3})

	failN(t, b, 2)
	if b.State() != StateClosed {
		t.Fatalf("expected closed below threshold, got %s", b.State())
	}

	failN(t, b, 1)
	if b.State() != StateOpen {
		t.Fatalf("expected open at threshold, got %s", b.State())
	}
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	b := New("census", Config{FailureThreshold: 1, Timeout: time.Minute})
	failN(t, b, 1)

	invoked := false
	err := b.Call(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	if invoked {
		t.Error("expected open breaker to skip the operation")
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %v", err)
	}
	if openErr.Name != "census" {
		t.Errorf("expected breaker name census, got %s", openErr.Name)
	}
	if openErr.RetryIn <= 0 || openErr.RetryIn > time.Minute {
		t.Errorf("expected retry-in within (0, 1m], got %v", openErr.RetryIn)
	}
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := New("census", Config{FailureThreshold: 1, Timeout: 30 * time.Millisecond})
	failN(t, b, 1)

	time.Sleep(50 * time.Millisecond)

	invoked := false
	err := b.Call(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected probe call admitted, got %v", err)
	}
	if !invoked {
		t.Fatal("expected operation invoked after cooldown")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected half_open after one probe success, got %s", b.State())
	}
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("census", Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})
	failN(t, b, 1)
	time.Sleep(20 * time.Millisecond)

	ok := func(context.Context) error { return nil }
	_ = b.Call(context.Background(), ok)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open after first success, got %s", b.State())
	}
	_ = b.Call(context.Background(), ok)
	if b.State() != StateClosed {
		t.Fatalf("expected closed after success threshold, got %s", b.State())
	}

	st := b.Status()
	if st.FailureCount != 0 || st.SuccessCount != 0 {
		t.Errorf("expected counters cleared on close, got failures=%d successes=%d",
			st.FailureCount, st.SuccessCount)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New("census", Config{FailureThreshold: 3, Timeout: 10 * time.Millisecond})
	failN(t, b, 3)
	time.Sleep(20 * time.Millisecond)

	// One failed probe is enough to reopen, regardless of threshold.
	failN(t, b, 1)
	if b.State() != StateOpen {
		t.Fatalf("expected reopened after failed probe, got %s", b.State())
	}
	if b.Status().SuccessCount != 0 {
		t.Error("expected probe counter cleared on reopen")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("census", Config{FailureThreshold: 5})
	failN(t, b, 4)

	_ = b.Call(context.Background(), func(context.Context) error { return nil })
	if got := b.Status().FailureCount; got != 0 {
		t.Errorf("expected failure count reset by success, got %d", got)
	}

	// The streak starts over: four more failures must not open it.
	failN(t, b, 4)
	if b.State() != StateClosed {
		t.Errorf("expected closed after interrupted streak, got %s", b.State())
	}
}

func TestBreaker_StatusSnapshot(t *testing.T) {
	b := New("places", Config{FailureThreshold: 2, Timeout: time.Minute})

	st := b.Status()
	if st.State != "closed" || st.LastFailure != nil || st.SecondsUntilRetry != 0 {
		t.Errorf("unexpected fresh status: %+v", st)
	}

	failN(t, b, 2)
	st = b.Status()
	if st.State != "open" {
		t.Fatalf("expected open, got %s", st.State)
	}
	if st.FailureCount != 2 {
		t.Errorf("expected failure count 2, got %d", st.FailureCount)
	}
	if st.LastFailure == nil {
		t.Error("expected last failure timestamp")
	}
	if st.SecondsUntilRetry <= 0 || st.SecondsUntilRetry > 60 {
		t.Errorf("expected seconds until retry within (0, 60], got %v", st.SecondsUntilRetry)
	}
	if st.TimeInStateSeconds < 0 || st.TimeInStateSeconds > 5 {
		t.Errorf("expected time in state near zero right after opening, got %v", st.TimeInStateSeconds)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := New("census", Config{FailureThreshold: 1, Timeout: time.Minute})
	failN(t, b, 1)

	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after reset, got %s", b.State())
	}

	invoked := false
	_ = b.Call(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})
	if !invoked {
		t.Error("expected calls admitted after reset")
	}
}

func TestBreaker_StateChangeListener(t *testing.T) {
	b := New("census", Config{FailureThreshold: 1, Timeout: time.Minute})

	var transitions []string
	b.onStateChange = func(name string, from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	failN(t, b, 1)
	b.Reset()

	want := []string{"closed>open", "open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}
