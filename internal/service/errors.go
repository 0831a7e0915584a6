package service

import "errors"

// Domain errors returned by the catalog and attempt services. Handlers map
// them onto response codes with errors.Is.
var (
	ErrNotFound                = errors.New("not found")
	ErrExamUnavailable         = errors.New("exam is not available")
	ErrAttemptAlreadySubmitted = errors.New("exam already taken")
	ErrInvalidQuestion         = errors.New("question does not belong to this exam")
	ErrInvalidOption           = errors.New("option does not belong to this question")
	ErrAttemptClosed           = errors.New("attempt is closed")
	ErrAttemptOpen             = errors.New("attempt is still open")
	ErrAttemptNotExpired       = errors.New("attempt deadline has not passed")
	ErrUnauthorized            = errors.New("attempt belongs to another student")
)
