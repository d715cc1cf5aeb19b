package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type stubCaller struct {
	calls   int
	results []error
	data    json.RawMessage
}

func (s *stubCaller) Execute(ctx context.Context, action string, parameters map[string]any) (json.RawMessage, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.results) && s.results[idx] != nil {
		return nil, s.results[idx]
	}
	return s.data, nil
}

func TestInvokeSucceedsAfterTransientFailures(t *testing.T) {
	caller := &stubCaller{
		results: []error{
			&Error{Kind: KindRemoteError, Message: "overloaded"},
			&Error{Kind: KindConnectionRefused, Message: "refused"},
			nil,
		},
		data: json.RawMessage(`{"content":"ok"}`),
	}
	iv := NewInvoker(caller, InvokerOptions{MaxRetries: 3, InitialDelay: 10 * time.Millisecond})

	start := time.Now()
	data, err := iv.Invoke(context.Background(), "generateStory", nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(data) != `{"content":"ok"}` {
		t.Fatalf("data = %s", data)
	}
	if caller.calls != 3 {
		t.Fatalf("calls = %d, want 3", caller.calls)
	}
	// Two backoffs: 10ms then 20ms.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("elapsed = %v, want at least 30ms of backoff", elapsed)
	}
}

func TestInvokeExhaustedReturnsLastError(t *testing.T) {
	caller := &stubCaller{
		results: []error{
			&Error{Kind: KindRemoteError, Message: "first"},
			&Error{Kind: KindRemoteError, Message: "second"},
			&Error{Kind: KindRemoteError, Message: "third"},
		},
	}
	iv := NewInvoker(caller, InvokerOptions{MaxRetries: 3, InitialDelay: time.Millisecond})

	_, err := iv.Invoke(context.Background(), "generateStory", nil)
	if err == nil {
		t.Fatal("expected error after budget exhausted")
	}
	var agentErr *Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if agentErr.Message != "third" {
		t.Fatalf("message = %q, want the last attempt's", agentErr.Message)
	}
	if caller.calls != 3 {
		t.Fatalf("calls = %d, want 3", caller.calls)
	}
}

func TestInvokeNonRetryableShortCircuits(t *testing.T) {
	caller := &stubCaller{
		results: []error{
			&Error{Kind: KindInvalidRequest, Message: "bad payload"},
		},
	}
	iv := NewInvoker(caller, InvokerOptions{MaxRetries: 3, InitialDelay: time.Millisecond})

	_, err := iv.Invoke(context.Background(), "generateChapter", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if caller.calls != 1 {
		t.Fatalf("calls = %d, want 1; invalid requests must not be retried", caller.calls)
	}
}

func TestInvokeStopsOnContextCancel(t *testing.T) {
	caller := &stubCaller{
		results: []error{
			&Error{Kind: KindRemoteError, Message: "overloaded"},
			&Error{Kind: KindRemoteError, Message: "overloaded"},
		},
	}
	iv := NewInvoker(caller, InvokerOptions{MaxRetries: 3, InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := iv.Invoke(ctx, "generateStory", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if caller.calls != 1 {
		t.Fatalf("calls = %d, want 1 before cancellation", caller.calls)
	}
}
