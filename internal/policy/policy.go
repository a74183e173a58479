package policy

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
	"media-catalog/internal/ratelimit"
)

// Sentinel validation errors. Handlers match on these with errors.Is to pick
// response codes and metric labels.
var (
	// ErrUnsupportedExtension means the extension is in neither allow-list.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrTypeMismatch means the extension's kind disagrees with the declared kind.
	ErrTypeMismatch = errors.New("file extension does not match declared kind")
	// ErrInvalidFieldShape means an optional array field is not an array of strings.
	ErrInvalidFieldShape = errors.New("field must be an array of strings")
	// ErrRateLimited means the fixed-window ceiling for the action was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Guard performs synchronous upload validation and rate limiting. Validation
// failures block record creation; everything after creation is asynchronous.
type Guard struct {
	limiter *ratelimit.Limiter
}

// NewGuard creates a Guard backed by the given limiter.
func NewGuard(limiter *ratelimit.Limiter) *Guard {
	return &Guard{limiter: limiter}
}

// ValidateUpload checks the file extension against the kind-partitioned
// allow-list and verifies it agrees with the declared kind.
func (g *Guard) ValidateUpload(fileName string, declaredKind mediatypes.Kind) error {
	ext := strings.ToLower(filepath.Ext(fileName))

	kind := mediatypes.KindForExtension(ext)
	if kind == mediatypes.KindOther {
		metrics.UploadValidationFailures.WithLabelValues("unsupported_extension").Inc()
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}

	if kind != declaredKind {
		metrics.UploadValidationFailures.WithLabelValues("type_mismatch").Inc()
		return fmt.Errorf("%w: %q is %s, declared %s", ErrTypeMismatch, ext, kind, declaredKind)
	}

	return nil
}

// ValidateStringArray checks an optional, JSON-decoded array field. A nil
// value is valid (the field is optional); anything other than an array whose
// elements are all strings fails with ErrInvalidFieldShape.
func (g *Guard) ValidateStringArray(value interface{}, fieldName string) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []string:
		return nil
	case []interface{}:
		for _, elem := range v {
			if _, ok := elem.(string); !ok {
				metrics.UploadValidationFailures.WithLabelValues("invalid_field_shape").Inc()
				return fmt.Errorf("%w: %s contains a non-string element", ErrInvalidFieldShape, fieldName)
			}
		}
		return nil
	default:
		metrics.UploadValidationFailures.WithLabelValues("invalid_field_shape").Inc()
		return fmt.Errorf("%w: %s is %T", ErrInvalidFieldShape, fieldName, value)
	}
}

// CheckRateLimit records one call for (action, key) against its fixed window
// and reports whether it is within the ceiling.
func (g *Guard) CheckRateLimit(action ratelimit.Action, key string) bool {
	if g.limiter.Allow(action, key) {
		return true
	}
	metrics.RateLimitRejections.WithLabelValues(string(action)).Inc()
	return false
}

// StringSlice converts a validated array value into []string.
// Call ValidateStringArray first; non-string elements are skipped here.
func StringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
