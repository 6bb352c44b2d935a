package errors_test

import (
	"encoding/json"
	"testing"

	apierr "github.com/poec-forensics/console/pkg/api/types/errors"
)

func TestErrorMessage(t *testing.T) {
	theory := func(body string, expected string, wantErr bool) func(*testing.T) {
		return func(t *testing.T) {
			actual := apierr.ErrorMessage{}
			err := json.Unmarshal([]byte(body), &actual)
			if wantErr {
				if err == nil {
					t.Errorf("expected error, but got %+v", actual)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if actual.Detail != expected {
				t.Errorf("unmatch detail: (actual, expected) = (%q, %q)", actual.Detail, expected)
			}
		}
	}

	t.Run("string detail is kept as is", theory(
		`{"detail": "Ingest rejected"}`, "Ingest rejected", false,
	))
	t.Run("structured detail is kept as JSON text", theory(
		`{"detail": [{"loc": ["query", "context_id"]}]}`, `[{"loc": ["query", "context_id"]}]`, false,
	))
	t.Run("body without detail is rejected", theory(
		`{"message": "oops"}`, "", true,
	))
}
