package resilience

import (
	"encoding/json"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError marks a failure worth retrying: an Intuit throttle response,
// a 5xx, or a dropped connection. RetryAfter carries the server's Retry-After
// hint when one was sent.
type TransientError struct {
	Err        error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as retryable with an optional HTTP status
// code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewThrottleError wraps a throttle response together with the wait the API
// asked for.
func NewThrottleError(err error, retryAfter time.Duration) *TransientError {
	return &TransientError{Err: err, StatusCode: 429, RetryAfter: retryAfter}
}

// AuthError marks a rejected bearer token (expired or revoked). It is never
// retried; the caller has to refresh the OAuth token first.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError wraps a token rejection.
func NewAuthError(err error) *AuthError {
	return &AuthError{Err: err}
}

// IsAuthError reports whether the chain contains a rejected-token failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// qboFault is the error envelope QBO sends with non-200 responses.
type qboFault struct {
	Fault struct {
		Type  string `json:"type"`
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
	} `json:"Fault"`
}

// FaultInfo is the decoded QBO Fault envelope: the fault type plus the first
// error's code and message.
type FaultInfo struct {
	Type    string
	Code    string
	Message string
}

// ParseFault decodes the QBO Fault envelope from an error response body.
// Returns false when the body carries no envelope.
func ParseFault(body []byte) (FaultInfo, bool) {
	var f qboFault
	if err := json.Unmarshal(body, &f); err != nil || f.Fault.Type == "" {
		return FaultInfo{}, false
	}
	info := FaultInfo{Type: f.Fault.Type}
	if len(f.Fault.Error) > 0 {
		info.Code = f.Fault.Error[0].Code
		info.Message = strings.TrimSpace(f.Fault.Error[0].Message)
	}
	return info, true
}

// IsTransient reports whether the fault is a server-side failure worth
// retrying. ValidationErrorFault and AuthenticationFault never are.
func (f FaultInfo) IsTransient() bool {
	return strings.EqualFold(f.Type, "SystemFault") ||
		strings.EqualFold(f.Type, "ServiceFault")
}

// IsAuthFault reports whether the fault indicates a rejected token.
func (f FaultInfo) IsAuthFault() bool {
	return strings.EqualFold(f.Type, "AuthenticationFault") ||
		strings.EqualFold(f.Type, "AUTHENTICATION")
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches the network failure modes the QBO edge
// produces under load (timeouts, resets, idle connections closed mid-flight).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsAuthError(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped http.Client errors lose their type; match on message.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true for statuses that warrant a retry. QBO
// throttles at 500 requests per minute per realm and signals it with 429.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests (realm throttle)
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
