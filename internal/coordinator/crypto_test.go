package coordinator

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, chacha20poly1305.KeySize)
	plaintext := []byte("Case ID;Activity;Duration\nc1;A;10\n")

	sealed, err := seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("open(seal(x)) = %q, want %q", got, plaintext)
	}
}

func TestOpen_RejectsWrongKey(t *testing.T) {
	key1 := bytes.Repeat([]byte{0x01}, chacha20poly1305.KeySize)
	key2 := bytes.Repeat([]byte{0x02}, chacha20poly1305.KeySize)

	sealed, err := seal(key1, []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := open(key2, sealed); err == nil {
		t.Error("expected error decrypting with wrong key")
	}
}
