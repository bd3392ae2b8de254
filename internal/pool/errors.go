package pool

import (
	"errors"
	"strconv"

	"github.com/coachpo/poolkit/errs"
)

var (
	// ErrPoolExhausted indicates a strict acquire found no free instance.
	ErrPoolExhausted = errors.New("pool: exhausted")
	// ErrPoolDestroyed indicates the pool was torn down by DestroyAll.
	ErrPoolDestroyed = errors.New("pool: destroyed")
	// ErrDoubleRelease indicates a release of an instance that is not currently acquired.
	ErrDoubleRelease = errors.New("pool: instance not acquired")
	// ErrUncomparable indicates Create returned a value that cannot key the acquired set.
	ErrUncomparable = errors.New("pool: instance not comparable")
	// ErrOutstanding indicates acquired instances were never released before teardown.
	ErrOutstanding = errors.New("pool: outstanding instances at teardown")
	// ErrPoolNotRegistered indicates the requested pool has not been registered.
	ErrPoolNotRegistered = errors.New("pool manager: pool not registered")
	// ErrManagerClosed indicates the manager is shut down and cannot service requests.
	ErrManagerClosed = errors.New("pool manager: shutdown in progress")
)

func invalid(pool, op, msg string) error {
	return errs.New(pool, errs.CodeInvalid, errs.WithOp(op), errs.WithMessage(msg))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
