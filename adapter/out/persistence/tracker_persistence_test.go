package persistence

import (
	"errors"
	"fmt"
	"testing"

	"tracker_server/pkg/crypto"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pgx unique", &pgconn.PgError{Code: "23505"}, true},
		{"pgx wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pgx other", &pgconn.PgError{Code: "23503"}, false},
		{"pq unique", &pq.Error{Code: "23505"}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

func TestRequireRow(t *testing.T) {
	notFound := errors.New("missing")
	if err := requireRow(fakeResult{rows: 1}, notFound); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := requireRow(fakeResult{rows: 0}, notFound); !errors.Is(err, notFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCredentialAdapter_TokenEncryption(t *testing.T) {
	enc, err := crypto.NewEncryptor([]byte("test-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := &CredentialAdapter{encryptor: enc}

	stored, err := a.encryptToken("1//refresh")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if stored == "1//refresh" {
		t.Fatal("expected token to be encrypted")
	}
	if got := a.decryptToken(stored); got != "1//refresh" {
		t.Errorf("expected round trip, got %q", got)
	}
	if got := a.decryptToken("ya29.legacy-plain"); got != "ya29.legacy-plain" {
		t.Errorf("expected legacy plaintext to pass through, got %q", got)
	}

	plain := &CredentialAdapter{}
	if got, _ := plain.encryptToken("tok"); got != "tok" {
		t.Errorf("expected passthrough without encryptor, got %q", got)
	}
}
