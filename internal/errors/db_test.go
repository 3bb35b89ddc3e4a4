package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	err := MapDBError(nil)
	if err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "canceled",
			err:      fmt.Errorf("query: %w", context.Canceled),
			wantCode: ErrCodeCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if got := GetCode(err); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: "profiles_matric_number_key",
		Detail:         "Key (matric_number)=(BU/21/0001) already exists.",
	}

	err := MapDBError(pgErr)
	if !IsConflict(err) {
		t.Fatalf("MapDBError() code = %v, want conflict", GetCode(err))
	}
	if got := GetField(err); got != "matric_number" {
		t.Errorf("GetField() = %q, want %q", got, "matric_number")
	}
}

func TestMapDBError_ProfileConflictMessage(t *testing.T) {
	err := MapDBError(&pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: "profiles_user_id_key",
		Detail:         "Key (user_id)=(u-1) already exists.",
	})
	if got := UserMessage(err); got != "A profile already exists for this user." {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := GetField(err); got != "user_id" {
		t.Errorf("GetField() = %q, want user_id", got)
	}
}

func TestMapDBError_Unavailable(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.CannotConnectNow})
	if !IsUnavailable(err) {
		t.Errorf("MapDBError(cannot_connect_now) code = %v, want unavailable", GetCode(err))
	}
}

func TestMapDBError_OtherPgErrorIsInternal(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
	if got := GetCode(err); got != ErrCodeInternal {
		t.Errorf("MapDBError(undefined_table) code = %v, want internal", got)
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	orig := errors.New("something else")
	if got := MapDBError(orig); !errors.Is(got, orig) || GetCode(got) != "" {
		t.Errorf("MapDBError() should return unrecognized errors unchanged, got %v", got)
	}
}
