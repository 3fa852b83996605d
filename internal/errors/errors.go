// Package errors provides the pipeline's structured error type.
// Codes classify failures by how the pipeline reacts to them, and map onto
// gRPC status codes for the OCR transport.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code identifies a class of failure.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeInvalidArgument
	CodeUnavailable
	CodeTimeout
	CodeCancelled
	CodeCaptureUnavailable
	CodeOCRFailed
	CodeUploadFailed
	CodeEnrichmentFailed
	CodeRedactionFailed
	CodeStorageFailed
	CodeConfigInvalid
)

var codeNames = map[Code]string{
	CodeUnknown:            "UNKNOWN",
	CodeInternal:           "INTERNAL",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeUnavailable:        "UNAVAILABLE",
	CodeTimeout:            "TIMEOUT",
	CodeCancelled:          "CANCELLED",
	CodeCaptureUnavailable: "CAPTURE_UNAVAILABLE",
	CodeOCRFailed:          "OCR_FAILED",
	CodeUploadFailed:       "UPLOAD_FAILED",
	CodeEnrichmentFailed:   "ENRICHMENT_FAILED",
	CodeRedactionFailed:    "REDACTION_FAILED",
	CodeStorageFailed:      "STORAGE_FAILED",
	CodeConfigInvalid:      "CONFIG_INVALID",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// grpcCodeMap maps pipeline codes to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:            codes.Unknown,
	CodeInternal:           codes.Internal,
	CodeInvalidArgument:    codes.InvalidArgument,
	CodeUnavailable:        codes.Unavailable,
	CodeTimeout:            codes.DeadlineExceeded,
	CodeCancelled:          codes.Canceled,
	CodeCaptureUnavailable: codes.Unavailable,
	CodeOCRFailed:          codes.Internal,
	CodeUploadFailed:       codes.Unavailable,
	CodeEnrichmentFailed:   codes.Unavailable,
	CodeRedactionFailed:    codes.Internal,
	CodeStorageFailed:      codes.Internal,
	CodeConfigInvalid:      codes.InvalidArgument,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// GRPCStatus lets status.FromError recognise an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Error())
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// FromGRPCError converts a gRPC error into an AppError under the given
// fallback code. Deadline and cancellation keep their own codes.
func FromGRPCError(err error, fallback Code) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: FromContextError(err, fallback), Message: err.Error(), Cause: err}
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return &AppError{Code: CodeTimeout, Message: st.Message(), Cause: err}
	case codes.Canceled:
		return &AppError{Code: CodeCancelled, Message: st.Message(), Cause: err}
	case codes.Unavailable:
		return &AppError{Code: CodeUnavailable, Message: st.Message(), Cause: err}
	case codes.InvalidArgument:
		return &AppError{Code: CodeInvalidArgument, Message: st.Message(), Cause: err}
	default:
		return &AppError{Code: fallback, Message: st.Message(), Cause: err}
	}
}

// FromContextError picks CodeTimeout or CodeCancelled for context errors and
// fallback for everything else.
func FromContextError(err error, fallback Code) Code {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case stderrors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return fallback
	}
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeEnrichmentFailed:
		return true
	default:
		return false
	}
}
