package service

import "errors"

var (
	ErrForbidden          = errors.New("operation not permitted for this actor")
	ErrNotFound           = errors.New("appointment not found")
	ErrUnknownTeacher     = errors.New("teacher not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidTeacherCode = errors.New("invalid teacher access code")
)
