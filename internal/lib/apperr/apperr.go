// Package apperr описывает типизированные доменные ошибки планировщика.
//
// Каждая ошибка имеет вид (Kind) и машинный код (Code). Сравнение через errors.Is
// выполняется по коду, поэтому ошибку можно обогатить сообщением или причиной
// и по-прежнему сравнивать с сентинелом.
package apperr

import (
	"errors"
	"fmt"
)

// Kind — категория ошибки. По ней транспортный слой выбирает статус ответа.
type Kind int

const (
	// KindDependency — отказ хранилища или внешнего сервиса.
	KindDependency Kind = iota
	// KindValidation — некорректные входные данные.
	KindValidation
	// KindConflict — конфликт с уже существующими данными.
	KindConflict
	// KindState — операция недопустима в текущем состоянии.
	KindState
	// KindNotFound — объект не найден.
	KindNotFound
	// KindForbidden — у вызывающего нет прав на объект.
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	default:
		return "dependency"
	}
}

// Error — доменная ошибка.
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

// Is сравнивает ошибки по коду.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage возвращает копию ошибки с уточнённым сообщением.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Wrap возвращает копию ошибки с причиной.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrValidation         = newErr(KindValidation, "validation_error", "invalid input")
	ErrUserNotFound       = newErr(KindNotFound, "user_not_found", "user not found")
	ErrPlanNotFound       = newErr(KindNotFound, "plan_not_found", "plan not found")
	ErrTaskNotInPlan      = newErr(KindState, "task_not_in_plan", "task does not belong to the plan")
	ErrPlanNotActive      = newErr(KindState, "plan_not_active", "plan is not active")
	ErrScheduleNotFound   = newErr(KindState, "schedule_not_found", "task is not scheduled for this date")
	ErrRemarkTooEarly     = newErr(KindState, "remark_too_early", "task date has not come yet")
	ErrDuplicateRemark    = newErr(KindConflict, "duplicate_remark", "remark for this task and date already exists")
	ErrDuplicatePlan      = newErr(KindConflict, "duplicate_plan", "plan with this name already exists")
	ErrAlreadyOpted       = newErr(KindConflict, "already_opted", "you have already opted into this plan")
	ErrPlanLimitExceeded  = newErr(KindConflict, "plan_limit_exceeded", "active plan limit reached")
	ErrInsufficientCoins  = newErr(KindState, "insufficient_coins", "not enough coins")
	ErrForbidden          = newErr(KindForbidden, "forbidden", "access denied")
	ErrPaymentNotVerified = newErr(KindValidation, "payment_not_verified", "payment could not be verified")
	ErrDuplicatePayment   = newErr(KindConflict, "duplicate_payment", "payment already processed")
	ErrSweepInProgress    = newErr(KindState, "sweep_in_progress", "previous sweep is still running")
)

// Validation создаёт ошибку валидации с сообщением.
func Validation(msg string) *Error {
	return ErrValidation.WithMessage(msg)
}

// KindOf возвращает вид ошибки. Ошибки, не являющиеся *Error, считаются отказом зависимости.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// CodeOf возвращает код доменной ошибки или "internal_error".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal_error"
}
