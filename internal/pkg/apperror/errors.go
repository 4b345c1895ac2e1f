package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"

	// Конфликты состояния.
	ErrCodeDuplicateActiveQuote      ErrorCode = "DUPLICATE_ACTIVE_QUOTE"
	ErrCodeQuoteNoLongerActive       ErrorCode = "QUOTE_NO_LONGER_ACTIVE"
	ErrCodeInvalidTransition         ErrorCode = "INVALID_TRANSITION"
	ErrCodeRequestNotAcceptingQuotes ErrorCode = "REQUEST_NOT_ACCEPTING_QUOTES"
	ErrCodeEntryNotActive            ErrorCode = "ENTRY_NOT_ACTIVE"
	ErrCodeDispatchAlreadyActive     ErrorCode = "DISPATCH_ALREADY_ACTIVE"

	ErrCodeOperatorNotEligible ErrorCode = "OPERATOR_NOT_ELIGIBLE"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeOperatorNotEligible:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict,
		ErrCodeDuplicateActiveQuote,
		ErrCodeQuoteNoLongerActive,
		ErrCodeInvalidTransition,
		ErrCodeRequestNotAcceptingQuotes,
		ErrCodeEntryNotActive,
		ErrCodeDispatchAlreadyActive:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или пустую строку, если это не AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return Is(err, ErrCodeForbidden) || Is(err, ErrCodeOperatorNotEligible)
}

func IsValidation(err error) bool {
	return Is(err, ErrCodeValidation)
}

// IsConflict сообщает, что операция проиграла гонку или нарушила порядок переходов.
func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusConflict
}

var (
	ErrRequestNotFound = New(ErrCodeNotFound, "заявка не найдена")
	ErrQuoteNotFound   = New(ErrCodeNotFound, "предложение не найдено")
	ErrEntryNotFound   = New(ErrCodeNotFound, "позиция очереди не найдена")
	ErrRunNotFound     = New(ErrCodeNotFound, "диспетчеризация для заявки не запускалась")
	ErrOperatorUnknown = New(ErrCodeNotFound, "исполнитель не найден")
	ErrUnauthorized    = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden       = New(ErrCodeForbidden, "недостаточно прав")

	ErrDuplicateActiveQuote = New(ErrCodeDuplicateActiveQuote, "у вас уже есть активное предложение по этой заявке")
	ErrQuoteNoLongerActive  = New(ErrCodeQuoteNoLongerActive, "предложение уже неактивно: возможно, его только что приняли или отозвали")
	ErrNotAcceptingQuotes   = New(ErrCodeRequestNotAcceptingQuotes, "заявка больше не принимает предложения")
	ErrEntryNotActive       = New(ErrCodeEntryNotActive, "предложение вызова уже неактуально: другой исполнитель успел первым или время истекло")
	ErrDispatchActive       = New(ErrCodeDispatchAlreadyActive, "по заявке уже идёт диспетчеризация")
	ErrOperatorNotEligible  = New(ErrCodeOperatorNotEligible, "исполнитель не подходит для этой заявки")
)
