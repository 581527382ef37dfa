package providers

import (
	"errors"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailReason
	}{
		{429, FailRateLimit},
		{529, FailOverloaded},
		{401, FailAuth},
		{403, FailAuth},
		{400, FailInvalidRequest},
		{408, FailTimeout},
		{500, FailServerError},
		{503, FailServerError},
		{200, FailUnknown},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Fatalf("status %d: got %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestRetryableReasons(t *testing.T) {
	retryable := []FailReason{FailRateLimit, FailOverloaded, FailTimeout, FailServerError}
	for _, r := range retryable {
		if !r.IsRetryable() {
			t.Fatalf("%s should be retryable", r)
		}
	}
	for _, r := range []FailReason{FailAuth, FailInvalidRequest, FailUnknown} {
		if r.IsRetryable() {
			t.Fatalf("%s should not be retryable", r)
		}
	}
}

func TestIsRetryableFromMessage(t *testing.T) {
	if !isRetryable(errors.New("request failed: too many requests")) {
		t.Fatal("rate limit message should retry")
	}
	if !isRetryable(errors.New("upstream overloaded_error")) {
		t.Fatal("overloaded message should retry")
	}
	if isRetryable(errors.New("invalid api key")) {
		t.Fatal("auth failure should not retry")
	}
}

func TestProviderErrorFormat(t *testing.T) {
	pe := NewProviderError("anthropic", "claude-sonnet-4-20250514", errors.New("boom")).WithStatus(529)
	msg := pe.Error()
	for _, want := range []string{"[overloaded]", "anthropic", "status=529", "boom"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}

	if _, ok := AsProviderError(errors.New("outer")); ok {
		t.Fatal("plain error detected as provider error")
	}
	if got, ok := AsProviderError(pe); !ok || got.Status != 529 {
		t.Fatalf("AsProviderError = %+v, %v", got, ok)
	}
}
