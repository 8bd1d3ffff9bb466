package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyPgErrors(t *testing.T) {
	cases := []struct {
		code string
		want Kind
	}{
		{"23505", KindValidation}, // unique violation
		{"22001", KindValidation}, // string too long
		{"28P01", KindAuth},       // bad password
		{"42501", KindPermission},
		{"42P01", KindServer}, // undefined table
		{"53300", KindServer}, // too many connections
		{"08006", KindNetwork},
		{"99999", KindUnknown},
	}
	for _, tc := range cases {
		got := Classify(&pgconn.PgError{Code: tc.code})
		if got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := Classify(context.DeadlineExceeded); got != KindNetwork {
		t.Errorf("deadline exceeded classified as %s, want network", got)
	}
	if got := Classify(errors.New("something odd")); got != KindUnknown {
		t.Errorf("plain error classified as %s, want unknown", got)
	}
}

func TestClassifyRespectsExistingWrap(t *testing.T) {
	wrapped := Wrap("save draft", &pgconn.PgError{Code: "42501"})
	if got := Classify(wrapped); got != KindPermission {
		t.Errorf("wrapped error classified as %s, want permission", got)
	}
}

func TestDoRetriesTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "flaky op", func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "08006"} // connection failure
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoDoesNotRetryPermissionFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "denied op", func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "42501"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("permission failure retried: %d attempts", calls)
	}
	if Classify(err) != KindPermission {
		t.Errorf("expected permission kind, got %s", Classify(err))
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "dead op", func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "08006"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != maxRetries+1 {
		t.Errorf("expected %d attempts, got %d", maxRetries+1, calls)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap("op", nil) != nil {
		t.Error("Wrap(nil) must return nil")
	}
}
