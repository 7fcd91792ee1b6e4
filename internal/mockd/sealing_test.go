package mockd

import (
	"bytes"
	"errors"
	"testing"
)

func TestSeal_RoundTrip(t *testing.T) {
	data := []byte("seed material")
	sealed, err := seal(data, "secret", defaultSealParams)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, data) {
		t.Fatal("sealed output contains the plaintext")
	}
	got, err := unseal(sealed, "secret")
	if err != nil {
		t.Fatalf("unseal: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("unseal = %q", got)
	}
}

func TestSeal_WrongPassword(t *testing.T) {
	sealed, err := seal([]byte("x"), "secret", defaultSealParams)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := unseal(sealed, "guess"); !errors.Is(err, errBadPassword) {
		t.Errorf("err = %v, want errBadPassword", err)
	}
}

func TestSeal_Truncated(t *testing.T) {
	if _, err := unseal(make([]byte, 10), "secret"); err == nil {
		t.Fatal("expected error for truncated input")
	}
}

func TestSeal_FreshSaltAndNonce(t *testing.T) {
	a, _ := seal([]byte("x"), "secret", defaultSealParams)
	b, _ := seal([]byte("x"), "secret", defaultSealParams)
	if bytes.Equal(a, b) {
		t.Error("two seals of the same data are identical")
	}
}
