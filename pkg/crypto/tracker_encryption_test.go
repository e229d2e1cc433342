package crypto

import (
	"errors"
	"testing"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("short key gets stretched"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ciphertext, err := enc.Encrypt("ya29.access-token")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if ciphertext == "ya29.access-token" || !IsEncrypted(ciphertext) {
		t.Fatalf("expected ciphertext, got %q", ciphertext)
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plaintext != "ya29.access-token" {
		t.Errorf("expected original token, got %q", plaintext)
	}
}

func TestEncryptor_NonceVaries(t *testing.T) {
	enc, _ := NewEncryptor(make([]byte, 32))
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Error("expected distinct ciphertexts for the same plaintext")
	}
}

func TestEncryptor_WrongKey(t *testing.T) {
	enc1, _ := NewEncryptor([]byte("key one"))
	enc2, _ := NewEncryptor([]byte("key two"))

	ciphertext, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(ciphertext); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestEncryptor_Empty(t *testing.T) {
	if _, err := NewEncryptor(nil); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}

	enc, _ := NewEncryptor([]byte("k"))
	if got, _ := enc.Encrypt(""); got != "" {
		t.Errorf("expected empty ciphertext, got %q", got)
	}
	if IsEncrypted("plain-token") {
		t.Error("expected plain token not to look encrypted")
	}
}
