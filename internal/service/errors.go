package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrPollClosed    = errors.New("poll is closed")
	ErrAlreadyVoted  = errors.New("you have already voted in this poll")
	ErrInvalidOption = errors.New("option does not belong to this poll")
	ErrValidation    = errors.New("validation failed")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("invalid username or password")
	ErrPollHasVotes  = errors.New("closing time cannot change once votes exist")
	ErrConflict      = errors.New("already exists")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound 把 gorm 的未找到翻译成领域错误
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
