package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误大类，决定 HTTP 状态码
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
)

// 稳定的错误码，直接返回给调用方
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeDuplicateDate      = "DUPLICATE_DATE_FOR_PROJECT"
	CodeInvalidDecision    = "INVALID_DECISION"
	CodeProgressIncomplete = "PROGRESS_INCOMPLETE"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeNotProjectMember   = "NOT_PROJECT_MEMBER"
	CodeNotSubmitter       = "NOT_SUBMITTER"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeVersionConflict    = "VERSION_CONFLICT"
)

// Error 业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 匹配，使 errors.Is(err, ErrNotFound) 对任意 NotFound 错误成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// 用于 errors.Is 的哨兵
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}

	ErrDuplicateDate      = &Error{Kind: KindValidation, Code: CodeDuplicateDate}
	ErrInvalidDecision    = &Error{Kind: KindValidation, Code: CodeInvalidDecision}
	ErrProgressIncomplete = &Error{Kind: KindValidation, Code: CodeProgressIncomplete}
	ErrNotProjectMember   = &Error{Kind: KindForbidden, Code: CodeNotProjectMember}
)

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidationFailed, Message: fmt.Sprintf(format, args...)}
}

func ValidationCode(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NotFound resource 形如 "milestone"
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: resource + " not found"}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

func ForbiddenCode(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func InvalidTransition(from, action string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s milestone in status %q", action, from),
	}
}

// KindOf 非业务错误返回空字符串
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As 便捷封装
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
