// Package svcerr provides the node's typed error taxonomy.
//
// Every error that crosses a component boundary is a *ServiceError* carrying
// a stable Kind so callers pattern-match on Kind, never on message text.
package svcerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable error taxonomy identifier (spec §7).
type Kind string

const (
	KindCapabilityMissing     Kind = "CapabilityMissing"
	KindAttestationUnavailable Kind = "AttestationUnavailable"
	KindAttestationInvalid    Kind = "AttestationInvalid"
	KindAttestationExpired    Kind = "AttestationExpired"
	KindTierMismatch          Kind = "TierMismatch"
	KindPolicyViolation       Kind = "PolicyViolation"
	KindOauthRequired         Kind = "OauthRequired"
	KindRuntimeUnavailable    Kind = "RuntimeUnavailable"
	KindTimeout               Kind = "Timeout"
	KindResourceExhausted     Kind = "ResourceExhausted"
	KindExecutionFailure      Kind = "ExecutionFailure"
	KindIO                    Kind = "Io"
)

// ServiceError is the node's structured error type.
type ServiceError struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(kind Kind, message string, httpStatus int) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, HTTPStatus: httpStatus}
}

func Wrap(kind Kind, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, HTTPStatus: httpStatus, Err: err}
}

func CapabilityMissing(feature string) *ServiceError {
	return New(KindCapabilityMissing, "required hardware capability absent", http.StatusPreconditionFailed).
		WithDetails("feature", feature)
}

func AttestationUnavailable(err error) *ServiceError {
	return Wrap(KindAttestationUnavailable, "attestation device unavailable", http.StatusServiceUnavailable, err)
}

func AttestationInvalid(reason string) *ServiceError {
	return New(KindAttestationInvalid, "attestation failed verification", http.StatusUnauthorized).
		WithDetails("reason", reason)
}

func AttestationExpired() *ServiceError {
	return New(KindAttestationExpired, "attestation result has expired", http.StatusUnauthorized)
}

func TierMismatch(have, need string) *ServiceError {
	return New(KindTierMismatch, fmt.Sprintf("tier mismatch: need %s, have %s", need, have), http.StatusForbidden).
		WithDetails("have", have).
		WithDetails("need", need)
}

func PolicyViolation(violation string) *ServiceError {
	return New(KindPolicyViolation, "policy denied the operation", http.StatusForbidden).
		WithDetails("violation", violation)
}

func OauthRequired(url string) *ServiceError {
	return New(KindOauthRequired, "oauth authorization required", http.StatusUnauthorized).
		WithDetails("url", url)
}

func RuntimeUnavailable(runtime string) *ServiceError {
	return New(KindRuntimeUnavailable, "runtime not configured", http.StatusNotImplemented).
		WithDetails("runtime", runtime)
}

func Timeout(operation string) *ServiceError {
	return New(KindTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func ResourceExhausted(resource string) *ServiceError {
	return New(KindResourceExhausted, "resource exhausted", http.StatusTooManyRequests).
		WithDetails("resource", resource)
}

func ExecutionFailure(message string, err error) *ServiceError {
	return Wrap(KindExecutionFailure, message, http.StatusInternalServerError, err)
}

func IO(operation string, err error) *ServiceError {
	return Wrap(KindIO, "io failure", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

// As extracts a *ServiceError from an error chain.
func As(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *ServiceError, or
// KindExecutionFailure otherwise — every dispatcher error path has a kind.
func KindOf(err error) Kind {
	if svcErr, ok := As(err); ok {
		return svcErr.Kind
	}
	return KindExecutionFailure
}
