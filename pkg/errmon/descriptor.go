// descriptor.go builds errors from plain data, for errors that arrive over
// the wire or from files rather than from Go code.

package errmon

import (
	"errors"
	"fmt"
)

// ErrorDescriptor names an error by kind instead of by Go type.
type ErrorDescriptor struct {
	// Kind is anything ParseKind accepts. Empty means a plain error that
	// classifies as unknown.
	Kind    string `json:"kind" yaml:"kind"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message" yaml:"message"`

	// Service names the dependency behind a circuit breaker error.
	Service string `json:"service,omitempty" yaml:"service,omitempty"`
}

// Build returns the described error, or err explaining why d is unusable.
func (d ErrorDescriptor) Build() (built error, err error) {
	if d.Kind == "" {
		if d.Message == "" {
			return nil, errors.New("message or kind is required")
		}
		return errors.New(d.Message), nil
	}
	kind, ok := ParseKind(d.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown error kind %q", d.Kind)
	}
	if kind == KindCircuitBreakerOpen && d.Message == "" {
		return NewCircuitBreakerOpenError(d.Service), nil
	}
	return &DomainError{Kind: kind, Code: d.Code, Message: d.Message, Service: d.Service}, nil
}
