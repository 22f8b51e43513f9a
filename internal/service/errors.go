package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user profile already exists")
	ErrStudentNotFound  = errors.New("student not found")
	ErrSubjectNotFound  = errors.New("subject not found")
	ErrSubjectExists    = errors.New("subject code already exists for this department and semester")
	ErrSemesterMismatch = errors.New("semester does not match the subject")
	ErrForbidden        = errors.New("access to this resource is not allowed")
	ErrStorageDisabled  = errors.New("transcript storage is not configured")
)
