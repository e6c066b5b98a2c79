package cerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/victorgomez09/interceptor/internal/chain"
)

// Common proxy error types
var (
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrNoUpstream      = errors.New("no upstream configured for host")
	ErrHandlerPanic    = errors.New("handler panicked")
)

// StatusClientClosedRequest is used when the client went away before a response was produced.
const StatusClientClosedRequest = 499

// ErrorResponse represents the structure of error responses sent to clients
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProxyErrorCode represents specific error conditions in the proxy
type ProxyErrorCode int

const (
	ErrCodeUnknown ProxyErrorCode = iota
	ErrCodeUpstreamConnFailed
	ErrCodeUpstreamTimeout
	ErrCodeNoUpstream
	ErrCodeHandler
	ErrCodeClientDisconnect
)

// ProxyError represents a detailed error that occurs during proxy operations.
// Handlers may return a *ProxyError to choose the status code of the fallback response.
type ProxyError struct {
	Op         string
	Code       ProxyErrorCode
	Message    string
	Err        error
	StatusCode int
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// NewProxyError classifies err and picks the status code the client will see.
// An existing *ProxyError in the chain of err is returned unchanged.
func NewProxyError(op string, err error) *ProxyError {
	var existing *ProxyError
	if errors.As(err, &existing) {
		return existing
	}

	pe := &ProxyError{
		Op:         op,
		Err:        err,
		Code:       ErrCodeUnknown,
		StatusCode: http.StatusBadGateway,
	}

	switch {
	case errors.Is(err, context.Canceled):
		pe.Code = ErrCodeClientDisconnect
		pe.Message = "Request canceled by client"
		pe.StatusCode = StatusClientClosedRequest

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrUpstreamTimeout):
		pe.Code = ErrCodeUpstreamTimeout
		pe.Message = "Upstream timeout"
		pe.StatusCode = http.StatusGatewayTimeout

	case errors.Is(err, ErrNoUpstream):
		pe.Code = ErrCodeNoUpstream
		pe.Message = "No upstream configured"

	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			var dnsErr *net.DNSError
			if errors.As(opErr.Err, &dnsErr) {
				pe.Code = ErrCodeUpstreamConnFailed
				pe.Message = fmt.Sprintf("DNS error: %s", dnsErr.Error())
				return pe
			}

			var syscallErr syscall.Errno
			if errors.As(opErr.Err, &syscallErr) {
				pe.Code = ErrCodeUpstreamConnFailed
				switch syscallErr {
				case syscall.ECONNREFUSED:
					pe.Message = "Connection refused by upstream"
				case syscall.ECONNRESET:
					pe.Message = "Connection reset by upstream"
				case syscall.ETIMEDOUT:
					pe.Code = ErrCodeUpstreamTimeout
					pe.Message = "Connection timed out"
					pe.StatusCode = http.StatusGatewayTimeout
				default:
					pe.Message = fmt.Sprintf("Network error: %s", syscallErr.Error())
				}
				return pe
			}
		}

		var netErr net.Error
		if errors.As(err, &netErr) {
			if netErr.Timeout() {
				pe.Code = ErrCodeUpstreamTimeout
				pe.Message = "Network timeout"
				pe.StatusCode = http.StatusGatewayTimeout
			} else {
				pe.Code = ErrCodeUpstreamConnFailed
				pe.Message = "Network error"
			}
			return pe
		}

		pe.Code = ErrCodeHandler
		pe.Message = "Request could not be processed"
	}

	return pe
}

// HandlerError lets a handler fail with a specific client-visible status.
func HandlerError(op string, status int, message string) *ProxyError {
	return &ProxyError{
		Op:         op,
		Code:       ErrCodeHandler,
		Message:    message,
		StatusCode: status,
	}
}

// Response converts err into the fallback response returned to the hosting engine.
// The body carries the classified message, not the raw error.
func Response(req *http.Request, op string, err error) *http.Response {
	pe := NewProxyError(op, err)
	body, _ := json.Marshal(ErrorResponse{
		Status:  "error",
		Message: pe.Message,
	})
	return chain.NewResponse(req, pe.StatusCode, "application/json", body)
}

// Recovered turns a value recovered from a panicking handler into an error.
func Recovered(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w", ErrHandlerPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrHandlerPanic, v)
}
