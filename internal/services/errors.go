package services

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrChatNotFound           = errors.New("chat not found")
	ErrChatNotActive          = errors.New("chat is not active")
	ErrChatClosed             = errors.New("chat is closed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPlanNotFound           = errors.New("plan not found")
)
