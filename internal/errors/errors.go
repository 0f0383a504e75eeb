package errors

import (
	"errors"
	"fmt"
)

// Basic error check functions from standard library
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func (e *appError) Error() string {
	msg := e.message
	if msg == "" {
		msg = GetErrorMessage(e.code)
	}

	switch {
	case e.data != nil && e.err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.data, e.err)
	case e.data != nil:
		return fmt.Sprintf("%s: %v", msg, e.data)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", msg, e.err)
	}

	return msg
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) WithMessage(msg string) Error {
	return &appError{
		code:    e.code,
		message: msg,
		err:     e.err,
		data:    e.data,
	}
}

func (e *appError) WithData(data any) Error {
	return &appError{
		code:    e.code,
		message: e.message,
		err:     e.err,
		data:    data,
	}
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

type defaultFactory struct{}

func (*defaultFactory) New(code ErrorCode) Error {
	return &appError{code: code}
}

func (*defaultFactory) Wrap(code ErrorCode, err error) Error {
	return &appError{code: code, err: err}
}

func (*defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{code: code, message: msg}
}

func (*defaultFactory) WithData(code ErrorCode, data any) Error {
	return &appError{code: code, data: data}
}

// New creates a Factory instance for error creation
func New() Factory {
	return &defaultFactory{}
}

// HasCode reports whether err, or any error it wraps, carries the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code() == code {
			return true
		}
		err = appErr.Unwrap()
	}

	return false
}
