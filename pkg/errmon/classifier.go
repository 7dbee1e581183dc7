// classifier.go maps arbitrary errors to a category, severity,
// recoverability flag and de-duplication key.

package errmon

import (
	"errors"
	"net"
	"reflect"
)

const noCode = "no_code"

// Classification is the result of classifying one error.
type Classification struct {
	Category        Category
	Severity        Severity
	UserRecoverable bool
	ErrorKey        string
}

var recoverableByCategory = map[Category]bool{
	CategoryValidation:     true,
	CategoryNetwork:        true,
	CategoryCircuitBreaker: true,
	CategoryPermission:     true,
	CategoryAuthentication: false,
	CategoryAIService:      false,
	CategoryStorage:        false,
	CategoryFirebase:       false,
	CategoryUnknown:        false,
}

var severityByCategory = map[Category]Severity{
	CategoryAuthentication: SeverityMedium,
	CategoryNetwork:        SeverityMedium,
	CategoryAIService:      SeverityMedium,
	CategoryValidation:     SeverityLow,
	CategoryPermission:     SeverityHigh,
	CategoryCircuitBreaker: SeverityHigh,
	CategoryStorage:        SeverityCritical,
	CategoryFirebase:       SeverityCritical,
	CategoryUnknown:        SeverityUnknown,
}

var categoryByKind = map[Kind]Category{
	KindNetwork:                CategoryNetwork,
	KindAuthentication:         CategoryAuthentication,
	KindAIService:              CategoryAIService,
	KindAIProcessing:           CategoryAIService,
	KindValidation:             CategoryValidation,
	KindPermission:             CategoryPermission,
	KindCircuitBreakerOpen:     CategoryCircuitBreaker,
	KindStorage:                CategoryStorage,
	KindFirebaseInitialization: CategoryFirebase,
	KindFirebaseAI:             CategoryFirebase,
}

// Classify runs every classifier function over err. It never panics.
func Classify(err error) Classification {
	category := CategorizeError(err)
	return Classification{
		Category:        category,
		Severity:        ErrorSeverity(err),
		UserRecoverable: recoverableByCategory[category],
		ErrorKey:        GenerateErrorKey(err),
	}
}

// CategorizeError returns the category of err. Wrapped domain errors are
// found with errors.As; net.Error values count as network failures; anything
// else is CategoryUnknown.
func CategorizeError(err error) Category {
	if kind, ok := domainKind(err); ok {
		if c, ok := categoryByKind[kind]; ok {
			return c
		}
		return CategoryUnknown
	}
	var netErr net.Error
	if err != nil && errors.As(err, &netErr) {
		return CategoryNetwork
	}
	return CategoryUnknown
}

// IsUserRecoverable reports whether the user can fix the failure by retrying
// or correcting input.
func IsUserRecoverable(err error) bool {
	return recoverableByCategory[CategorizeError(err)]
}

// ErrorSeverity returns the severity of err.
func ErrorSeverity(err error) Severity {
	if kind, ok := domainKind(err); ok {
		switch kind {
		case KindCircuitBreakerOpen:
			return SeverityHigh
		case KindFirebaseInitialization:
			return SeverityCritical
		}
	}
	if s, ok := severityByCategory[CategorizeError(err)]; ok {
		return s
	}
	return SeverityUnknown
}

// GenerateErrorKey returns the de-duplication key of err: "Type:code" or
// "Type:no_code" for domain errors, the bare type name otherwise.
func GenerateErrorKey(err error) string {
	var kinded KindedError
	if err != nil && errors.As(err, &kinded) {
		code := safeCode(kinded)
		if code == "" {
			code = noCode
		}
		return typeName(kinded) + ":" + code
	}
	return typeName(err)
}

// ShouldTriggerImmediateAlert reports whether err is critical.
func ShouldTriggerImmediateAlert(err error) bool {
	return ErrorSeverity(err) == SeverityCritical
}

func domainKind(err error) (kind Kind, ok bool) {
	if err == nil {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			kind, ok = 0, false
		}
	}()
	var kinded KindedError
	if !errors.As(err, &kinded) {
		return 0, false
	}
	return kinded.ErrorKind(), true
}

func safeCode(err error) (code string) {
	defer func() {
		if recover() != nil {
			code = ""
		}
	}()
	if coded, ok := err.(CodedError); ok {
		return coded.ErrorCode()
	}
	return ""
}

func typeName(err error) (name string) {
	if err == nil {
		return "<nil>"
	}
	defer func() {
		if recover() != nil {
			name = reflect.TypeOf(err).String()
		}
	}()
	if n, ok := err.(TypeNamer); ok && n.TypeName() != "" {
		return n.TypeName()
	}
	return reflect.TypeOf(err).String()
}
