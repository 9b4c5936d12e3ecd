package models

import (
	"bytes"
	"testing"
)

func withTestBlobKey(t *testing.T) {
	t.Helper()
	prev := blobKey
	if err := SetBlobKey([]byte("0123456789abcdef0123456789abcdef")); err != nil {
		t.Fatalf("SetBlobKey returned error: %v", err)
	}
	t.Cleanup(func() { blobKey = prev })
}

func TestSetBlobKeyLength(t *testing.T) {
	prev := blobKey
	t.Cleanup(func() { blobKey = prev })

	for _, n := range []int{16, 24, 32} {
		if err := SetBlobKey(make([]byte, n)); err != nil {
			t.Errorf("SetBlobKey with %d-byte key returned error: %v", n, err)
		}
	}
	for _, n := range []int{0, 15, 33} {
		if err := SetBlobKey(make([]byte, n)); err == nil {
			t.Errorf("SetBlobKey accepted a %d-byte key", n)
		}
	}
}

func TestSecureBlobRoundTrip(t *testing.T) {
	withTestBlobKey(t)

	in := SecureBlob{
		"form": map[string]interface{}{
			"filled":  true,
			"medical": false,
			"fields":  map[string]interface{}{"allergies": "peanuts"},
		},
	}

	value, err := in.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	raw, ok := value.([]byte)
	if !ok {
		t.Fatalf("Value returned %T, want []byte", value)
	}
	if bytes.Contains(raw, []byte("peanuts")) {
		t.Fatal("stored blob contains plaintext")
	}

	var out SecureBlob
	if err := out.Scan(raw); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	form, ok := out["form"].(map[string]interface{})
	if !ok {
		t.Fatalf("decrypted blob lost its structure: %+v", out)
	}
	if form["filled"] != true {
		t.Errorf("filled = %v, want true", form["filled"])
	}
	fields, _ := form["fields"].(map[string]interface{})
	if fields["allergies"] != "peanuts" {
		t.Errorf("allergies = %v, want peanuts", fields["allergies"])
	}
}

func TestSecureBlobNil(t *testing.T) {
	withTestBlobKey(t)

	var blob SecureBlob
	value, err := blob.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if value != nil {
		t.Errorf("nil blob stored as %v, want NULL", value)
	}

	var out SecureBlob
	if err := out.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if out != nil {
		t.Errorf("Scan(nil) produced %v, want nil", out)
	}
}

func TestSecureBlobTamperDetected(t *testing.T) {
	withTestBlobKey(t)

	in := SecureBlob{"secret": "value"}
	value, err := in.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	raw := value.([]byte)
	raw[len(raw)-1] ^= 0xff

	var out SecureBlob
	if err := out.Scan(raw); err == nil {
		t.Fatal("Scan accepted tampered ciphertext")
	}
}

func TestSecureBlobWithoutKey(t *testing.T) {
	prev := blobKey
	blobKey = nil
	t.Cleanup(func() { blobKey = prev })

	if _, err := (SecureBlob{"a": "b"}).Value(); err == nil {
		t.Error("Value succeeded without a configured key")
	}
	var out SecureBlob
	if err := out.Scan([]byte("anything")); err == nil {
		t.Error("Scan succeeded without a configured key")
	}
}
