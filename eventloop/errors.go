package eventloop

import (
	"errors"
	"fmt"
)

var (
	ErrNoInterest        = errors.New("eventloop: source has no handler")
	ErrAlreadyRegistered = errors.New("eventloop: fd already registered")
	ErrNotRegistered     = errors.New("eventloop: fd not registered")
	ErrClosed            = errors.New("eventloop: poller closed")
	ErrUnsupported       = errors.New("eventloop: this platform is not supported")
)

//RegistrationError add/remove/rearm 失败
type RegistrationError struct {
	Op  string
	Fd  int
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("eventloop: %s fd %d: %v", e.Op, e.Fd, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

//InitError 创建Poller或Barrier失败
type InitError struct {
	Op  string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("eventloop: %s: %v", e.Op, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
