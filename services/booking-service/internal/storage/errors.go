package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict: the conflict predicate matched an existing appointment.
	ErrConflict = errors.New("overlapping appointment exists")
	// ErrConflictRace: the exclusion constraint caught an overlap the
	// predicate did not see. Callers may retry the whole booking once.
	ErrConflictRace = errors.New("overlapping appointment committed concurrently")
	ErrTransient    = errors.New("transient storage failure")
	ErrDuplicate    = errors.New("duplicate")
)

// IsConflict reports an exclusion constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}

// IsTransient reports failures worth retrying: timeouts, cancelled
// requests, lost connections, serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014", "53300":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}

// Classify maps driver errors onto the package sentinels, keeping the
// original error in the chain.
func Classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case IsConflict(err):
		return fmt.Errorf("%s: %w: %w", op, ErrConflictRace, err)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	case IsTransient(err):
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
