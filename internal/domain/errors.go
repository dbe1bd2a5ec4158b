package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid mining config")
	ErrTemplate      = errors.New("template error")
	ErrIdentityStore = errors.New("identity store error")
	ErrLaunch        = errors.New("launch error")
	ErrStreamRead    = errors.New("stream read error")
)

// TemplateError reports a template that could not be rendered. No worker is
// launched when it occurs.
type TemplateError struct {
	Op  string
	Err error
}

func (e *TemplateError) Error() string { return format("template", e.Op, e.Err) }
func (e *TemplateError) Unwrap() error { return e.Err }
func (e *TemplateError) Is(target error) bool {
	return target == ErrTemplate
}

type IdentityStoreError struct {
	Op  string
	Err error
}

func (e *IdentityStoreError) Error() string { return format("identity store", e.Op, e.Err) }
func (e *IdentityStoreError) Unwrap() error { return e.Err }
func (e *IdentityStoreError) Is(target error) bool {
	return target == ErrIdentityStore
}

type LaunchError struct {
	Op  string
	Err error
}

func (e *LaunchError) Error() string { return format("launch", e.Op, e.Err) }
func (e *LaunchError) Unwrap() error { return e.Err }
func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunch
}

type StreamReadError struct {
	Op  string
	Err error
}

func (e *StreamReadError) Error() string { return format("stream read", e.Op, e.Err) }
func (e *StreamReadError) Unwrap() error { return e.Err }
func (e *StreamReadError) Is(target error) bool {
	return target == ErrStreamRead
}

func format(kind, op string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: %s", kind, op)
	}
	return fmt.Sprintf("%s: %s: %v", kind, op, err)
}
