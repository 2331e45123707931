// server/internal/surplus/errors.go
package surplus

import (
	"errors"
	"fmt"
	"net/http"

	"ecoset-logistics-api-server/internal/store"
)

// ErrorKind phân loại lỗi của engine theo taxonomy: validation bị chặn trước
// khi ghi, invariant bị chặn local, conflict/persistence đến từ store.
type ErrorKind string

const (
	KindValidation  ErrorKind = "VALIDATION_ERROR"
	KindInvariant   ErrorKind = "INVARIANT_VIOLATION"
	KindNotFound    ErrorKind = "NOT_FOUND"
	KindConflict    ErrorKind = "CONFLICT"
	KindPersistence ErrorKind = "PERSISTENCE_ERROR"
)

// Error là lỗi có kiểu của engine. Caller dùng Kind (hoặc HTTPStatus) để
// quyết định cách hiển thị; engine không bao giờ tự hiển thị gì.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func errValidationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errInvariantf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvariant, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// wrapStore dịch lỗi của tầng store sang taxonomy của engine.
func wrapStore(err error, operation string) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: operation, Err: err}
	case errors.Is(err, store.ErrVersionConflict):
		return &Error{Kind: KindConflict, Message: operation, Err: err}
	case errors.Is(err, store.ErrDuplicateID):
		return &Error{Kind: KindConflict, Message: operation, Err: err}
	default:
		return &Error{Kind: KindPersistence, Message: operation, Err: err}
	}
}

// IsKind kiểm tra một error có phải engine Error với kind cho trước không.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus ánh xạ lỗi engine sang status code ở boundary handler.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation, KindInvariant:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
