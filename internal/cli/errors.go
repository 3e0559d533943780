package cli

import "errors"

// ErrUsage matches every error caused by invalid input or flags.
var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// IsUsage reports whether err was caused by invalid input or flags.
func IsUsage(err error) bool {
	return errors.Is(err, ErrUsage)
}
