// Package remote classifies failures from the backing store and wraps
// calls with a bounded retry policy. Transient classes (network, server,
// unknown) are retried; auth, permission and validation failures are not.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindServer     Kind = "server"
	KindUnknown    Kind = "unknown"
)

// Error carries the classified kind alongside the original failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify inspects err and assigns it a Kind. Postgres errors are
// classified by SQLSTATE class; anything implementing net.Error or a
// context cancellation counts as network.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	return KindUnknown
}

func classifySQLState(code string) Kind {
	if len(code) < 2 {
		return KindUnknown
	}
	switch code[:2] {
	case "08": // connection exceptions
		return KindNetwork
	case "22", "23": // data / integrity constraint violations
		return KindValidation
	case "28": // invalid authorization
		return KindAuth
	case "42":
		if code == "42501" { // insufficient privilege
			return KindPermission
		}
		return KindServer
	case "53", "57", "58", "XX": // resource exhaustion, operator intervention, internal
		return KindServer
	default:
		return KindUnknown
	}
}

// Retryable reports whether a failure of this kind may succeed on retry.
func Retryable(k Kind) bool {
	switch k {
	case KindNetwork, KindServer, KindUnknown:
		return true
	default:
		return false
	}
}

// Wrap classifies err and tags it with the operation name. Returns nil on
// nil input.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// IsNotFound reports whether err is a normal missing-row result rather
// than a failure. Used by callers that treat absence as nil.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
