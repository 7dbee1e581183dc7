// errors.go defines the domain error kinds recognized by the classifier and
// the sentinel errors returned by the monitor itself.

package errmon

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned by operational Monitor methods called
	// before Initialize or after Dispose.
	ErrNotInitialized = errors.New("errmon: monitor not initialized")

	// ErrHealthMonitoringDisabled is returned by HealthReport when the
	// configuration turns health monitoring off.
	ErrHealthMonitoringDisabled = errors.New("errmon: health monitoring disabled")

	// ErrInvalidConfig is wrapped by Config.Validate failures.
	ErrInvalidConfig = errors.New("errmon: invalid config")
)

// Kind is the closed set of domain error kinds a host error can declare.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindAuthentication
	KindAIService
	KindAIProcessing
	KindValidation
	KindPermission
	KindCircuitBreakerOpen
	KindStorage
	KindFirebaseInitialization
	KindFirebaseAI
)

var kindTypeNames = map[Kind]string{
	KindNetwork:                "NetworkError",
	KindAuthentication:         "AuthenticationError",
	KindAIService:              "AIServiceError",
	KindAIProcessing:           "AIProcessingError",
	KindValidation:             "ValidationError",
	KindPermission:             "PermissionError",
	KindCircuitBreakerOpen:     "CircuitBreakerOpenError",
	KindStorage:                "StorageError",
	KindFirebaseInitialization: "FirebaseInitializationError",
	KindFirebaseAI:             "FirebaseAIError",
}

// String returns the type name used in error keys, e.g. "NetworkError".
func (k Kind) String() string {
	if name, ok := kindTypeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind resolves a kind from its type name ("NetworkError") or a short
// form such as "network" or "circuit_breaker_open". Matching ignores case,
// underscores and hyphens.
func ParseKind(s string) (Kind, bool) {
	want := normalizeKindName(s)
	if want == "" {
		return 0, false
	}
	for k, name := range kindTypeNames {
		if normalizeKindName(name) == want {
			return k, true
		}
	}
	return 0, false
}

func normalizeKindName(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	return strings.TrimSuffix(s, "error")
}

// KindedError is implemented by host errors that belong to a domain kind.
// Errors that do not implement it classify as CategoryUnknown.
type KindedError interface {
	error
	ErrorKind() Kind
}

// CodedError is implemented by errors that carry a structured code.
// An empty code means "no code".
type CodedError interface {
	ErrorCode() string
}

// TypeNamer lets an error choose the type name used in its error key.
type TypeNamer interface {
	TypeName() string
}

// DomainError is a ready-made KindedError for hosts that do not define their
// own error types.
type DomainError struct {
	Kind    Kind
	Code    string
	Message string

	// Service names the protected dependency for circuit-breaker errors.
	Service string

	Err error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) ErrorKind() Kind { return e.Kind }

func (e *DomainError) ErrorCode() string { return e.Code }

func (e *DomainError) TypeName() string { return e.Kind.String() }

// NewNetworkError creates a network DomainError.
func NewNetworkError(code, message string) *DomainError {
	return &DomainError{Kind: KindNetwork, Code: code, Message: message}
}

// NewAuthenticationError creates an authentication DomainError.
func NewAuthenticationError(code, message string) *DomainError {
	return &DomainError{Kind: KindAuthentication, Code: code, Message: message}
}

// NewAIServiceError creates an AI service DomainError.
func NewAIServiceError(code, message string) *DomainError {
	return &DomainError{Kind: KindAIService, Code: code, Message: message}
}

// NewAIProcessingError creates an AI processing DomainError.
func NewAIProcessingError(code, message string) *DomainError {
	return &DomainError{Kind: KindAIProcessing, Code: code, Message: message}
}

// NewValidationError creates a validation DomainError.
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewPermissionError creates a permission DomainError.
func NewPermissionError(code, message string) *DomainError {
	return &DomainError{Kind: KindPermission, Code: code, Message: message}
}

// NewCircuitBreakerOpenError creates a DomainError for a tripped breaker
// guarding service.
func NewCircuitBreakerOpenError(service string) *DomainError {
	return &DomainError{
		Kind:    KindCircuitBreakerOpen,
		Message: fmt.Sprintf("circuit breaker open for %s", service),
		Service: service,
	}
}

// NewStorageError creates a storage DomainError.
func NewStorageError(code, message string) *DomainError {
	return &DomainError{Kind: KindStorage, Code: code, Message: message}
}

// NewFirebaseInitializationError creates a DomainError for a failed
// Firebase bootstrap.
func NewFirebaseInitializationError(message string, cause error) *DomainError {
	return &DomainError{Kind: KindFirebaseInitialization, Message: message, Err: cause}
}

// NewFirebaseAIError creates a Firebase AI DomainError.
func NewFirebaseAIError(code, message string) *DomainError {
	return &DomainError{Kind: KindFirebaseAI, Code: code, Message: message}
}
