package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeAppError    = "APP_ERROR"
	CodeAcquisition = "ACQUISITION_ERROR"
	CodeExtraction  = "EXTRACTION_ERROR"
	CodeGeneration  = "GENERATION_ERROR"
	CodeValidation  = "VALIDATION_ERROR"
	CodeInFlight    = "IN_FLIGHT_ERROR"
	CodeAuth        = "AUTH_ERROR"
	CodeCache       = "CACHE_ERROR"
	CodeService     = "SERVICE_ERROR"
	CodeCanceled    = "CANCELED"
)

type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(message, code string, statusCode int, context map[string]any) *AppError {
	return &AppError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// AcquisitionError marks a blocked or failed scout. The coordinator absorbs it;
// it only travels as far as logs and metrics.
type AcquisitionError struct {
	*AppError
	URL string
}

func NewAcquisitionError(message, url string, cause error) *AcquisitionError {
	return &AcquisitionError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeAcquisition,
			StatusCode: http.StatusBadGateway,
			Context:    map[string]any{"url": url},
			Cause:      cause,
		},
		URL: url,
	}
}

type ExtractionError struct {
	*AppError
	MIMEType string
}

func NewExtractionError(message, mimeType string, cause error) *ExtractionError {
	return &ExtractionError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeExtraction,
			StatusCode: http.StatusUnprocessableEntity,
			Context:    map[string]any{"mime_type": mimeType},
			Cause:      cause,
		},
		MIMEType: mimeType,
	}
}

// GenerationError covers transport failures and absent or malformed structured
// output from the generative service.
type GenerationError struct {
	*AppError
	Operation string
}

func NewGenerationError(message, operation string, cause error) *GenerationError {
	return &GenerationError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeGeneration,
			StatusCode: http.StatusBadGateway,
			Context:    map[string]any{"operation": operation},
			Cause:      cause,
		},
		Operation: operation,
	}
}

type ValidationError struct {
	*AppError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: http.StatusBadRequest,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

// InFlightError is returned when an operation key is already outstanding.
type InFlightError struct {
	*AppError
	Key string
}

func NewInFlightError(message, key string) *InFlightError {
	return &InFlightError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeInFlight,
			StatusCode: http.StatusConflict,
			Context:    map[string]any{"key": key},
		},
		Key: key,
	}
}

type AuthError struct {
	*AppError
}

func NewAuthError(message string) *AuthError {
	return &AuthError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeAuth,
			StatusCode: http.StatusUnauthorized,
		},
	}
}

type CacheError struct {
	*AppError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: http.StatusInternalServerError,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type ServiceError struct {
	*AppError
	Service   string
	Operation string
}

func NewServiceError(message, service, operation string, cause error) *ServiceError {
	return &ServiceError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeService,
			StatusCode: http.StatusInternalServerError,
			Context: map[string]any{
				"service":   service,
				"operation": operation,
			},
			Cause: cause,
		},
		Service:   service,
		Operation: operation,
	}
}

// NewCanceledError reports a run dropped because its owner went away
// (mode switch, logout or shutdown).
func NewCanceledError(operation string, cause error) *AppError {
	return NewAppError("la operación fue cancelada", CodeCanceled, http.StatusConflict,
		map[string]any{"operation": operation}).WithCause(cause)
}

// CodeOf returns the taxonomy code of err, or CodeAppError when err carries none.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if app := asAppError(err); app != nil {
		return app.Code
	}
	return CodeAppError
}

// StatusOf maps err to an HTTP status code.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if app := asAppError(err); app != nil && app.StatusCode != 0 {
		return app.StatusCode
	}
	return http.StatusInternalServerError
}

// MessageOf returns the operator-facing message of err without its cause chain.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if app := asAppError(err); app != nil {
		return app.Message
	}
	return err.Error()
}

func asAppError(err error) *AppError {
	var (
		acq    *AcquisitionError
		ext    *ExtractionError
		gen    *GenerationError
		val    *ValidationError
		flight *InFlightError
		auth   *AuthError
		cache  *CacheError
		svc    *ServiceError
		app    *AppError
	)
	switch {
	case stderrors.As(err, &acq):
		return acq.AppError
	case stderrors.As(err, &ext):
		return ext.AppError
	case stderrors.As(err, &gen):
		return gen.AppError
	case stderrors.As(err, &val):
		return val.AppError
	case stderrors.As(err, &flight):
		return flight.AppError
	case stderrors.As(err, &auth):
		return auth.AppError
	case stderrors.As(err, &cache):
		return cache.AppError
	case stderrors.As(err, &svc):
		return svc.AppError
	case stderrors.As(err, &app):
		return app
	}
	return nil
}
