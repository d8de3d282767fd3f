package util

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"buildtrack/pkg/apperr"
)

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error = json.Unmarshal([]byte("{"), &struct{}{})

	cases := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"json", syntaxErr, false, "json_decode_error"},
		{"not found", apperr.NotFound("project"), false, "not_found"},
		{"wrapped not found", fmt.Errorf("recalc: %w", apperr.NotFound("project")), false, "not_found"},
		{"transition", apperr.InvalidTransition("completed", "submit"), false, "business_rule"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "tx_conflict"},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, "db_connection_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"unknown", fmt.Errorf("boom"), false, "unknown_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tc.err)
			if retryable != tc.retryable || errType != tc.errType {
				t.Errorf("expected (%v, %s), got (%v, %s)", tc.retryable, tc.errType, retryable, errType)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(3, 5, true) {
		t.Error("expected retry within budget")
	}
	if ShouldRetry(6, 5, true) {
		t.Error("expected no retry beyond budget")
	}
	if ShouldRetry(1, 5, false) {
		t.Error("expected no retry for non-retryable error")
	}
}
