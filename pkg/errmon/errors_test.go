package errmon

import (
	"errors"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	cause := errors.New("missing credentials")
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{"message and code", NewNetworkError("timeout", "upstream timed out"), "upstream timed out (timeout)"},
		{"message only", NewAIProcessingError("", "bad output"), "bad output"},
		{"kind fallback", &DomainError{Kind: KindStorage}, "StorageError"},
		{"with cause", NewFirebaseInitializationError("init failed", cause), "init failed: missing credentials"},
		{"circuit breaker", NewCircuitBreakerOpenError("vision"), "circuit breaker open for vision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("missing credentials")
	err := NewFirebaseInitializationError("init failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestKind_String(t *testing.T) {
	if got := KindFirebaseAI.String(); got != "FirebaseAIError" {
		t.Errorf("String() = %q", got)
	}
	if got := Kind(99).String(); got != "Kind(99)" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"NetworkError", KindNetwork, true},
		{"network", KindNetwork, true},
		{"circuit_breaker_open", KindCircuitBreakerOpen, true},
		{"ai-service", KindAIService, true},
		{"FIREBASE_AI", KindFirebaseAI, true},
		{"firebase_initialization", KindFirebaseInitialization, true},
		{"", 0, false},
		{"error", 0, false},
		{"quota", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
