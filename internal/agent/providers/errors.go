package providers

import (
	"errors"
	"fmt"
	"strings"
)

// FailReason categorizes why a provider request failed, driving retry
// decisions.
type FailReason string

const (
	FailRateLimit      FailReason = "rate_limit"      // HTTP 429
	FailOverloaded     FailReason = "overloaded"      // HTTP 529
	FailAuth           FailReason = "auth"            // HTTP 401, 403
	FailTimeout        FailReason = "timeout"
	FailServerError    FailReason = "server_error"    // HTTP 5xx
	FailInvalidRequest FailReason = "invalid_request" // HTTP 400
	FailUnknown        FailReason = "unknown"
)

// IsRetryable reports whether retrying the same request may succeed.
func (r FailReason) IsRetryable() bool {
	switch r {
	case FailRateLimit, FailOverloaded, FailTimeout, FailServerError:
		return true
	}
	return false
}

// ProviderError is a structured failure from an LLM provider.
type ProviderError struct {
	Reason    FailReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	switch {
	case e.Message != "":
		parts = append(parts, e.Message)
	case e.Cause != nil:
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps cause with a classification derived from its text.
func NewProviderError(provider, model string, cause error) *ProviderError {
	e := &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: FailUnknown}
	if cause != nil {
		e.Message = cause.Error()
		e.Reason = classifyMessage(cause.Error())
	}
	return e
}

// WithStatus sets the HTTP status and reclassifies from it.
func (e *ProviderError) WithStatus(status int) *ProviderError {
	e.Status = status
	if r := classifyStatus(status); r != FailUnknown {
		e.Reason = r
	}
	return e
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func classifyStatus(status int) FailReason {
	switch {
	case status == 429:
		return FailRateLimit
	case status == 529:
		return FailOverloaded
	case status == 401 || status == 403:
		return FailAuth
	case status == 400:
		return FailInvalidRequest
	case status == 408:
		return FailTimeout
	case status >= 500 && status < 600:
		return FailServerError
	}
	return FailUnknown
}

func classifyMessage(msg string) FailReason {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "rate_limit"), strings.Contains(lower, "429"),
		strings.Contains(lower, "too many requests"):
		return FailRateLimit
	case strings.Contains(lower, "overloaded"), strings.Contains(lower, "529"):
		return FailOverloaded
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return FailTimeout
	case strings.Contains(lower, "500"), strings.Contains(lower, "502"),
		strings.Contains(lower, "503"), strings.Contains(lower, "504"),
		strings.Contains(lower, "internal server error"),
		strings.Contains(lower, "service unavailable"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "connection refused"):
		return FailServerError
	case strings.Contains(lower, "401"), strings.Contains(lower, "403"),
		strings.Contains(lower, "invalid api key"), strings.Contains(lower, "authentication"):
		return FailAuth
	}
	return FailUnknown
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if pe, ok := AsProviderError(err); ok {
		return pe.Reason.IsRetryable()
	}
	return classifyMessage(err.Error()).IsRetryable()
}
