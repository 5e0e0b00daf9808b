package cipher

import (
	"testing"

	"github.com/shadowmesh/harmonydesk/shared/protocol"
)

func TestIdentityCipherByDefault(t *testing.T) {
	c, err := New([32]byte{}, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Enabled() {
		t.Fatal("Enabled() = true for an unconfigured key")
	}

	plain := []byte("input event payload")
	sealed, err := c.Seal(plain)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if string(sealed) != string(plain) {
		t.Fatalf("Seal() = %v, want unchanged %v", sealed, plain)
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(opened) != string(plain) {
		t.Fatalf("Open() = %v, want %v", opened, plain)
	}
}

func TestKeyedCipherRoundTrip(t *testing.T) {
	digest := [32]byte{1, 2, 3}
	c, err := New(digest, "preshared-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !c.Enabled() {
		t.Fatal("Enabled() = false for a configured key")
	}

	plain := []byte("video frame bytes")
	sealed, err := c.Seal(plain)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if string(sealed) == string(plain) {
		t.Fatal("Seal() did not transform plaintext")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(opened) != string(plain) {
		t.Fatalf("Open() = %v, want %v", opened, plain)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	digest := [32]byte{9, 9, 9}
	c, err := New(digest, "preshared-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sealed, err := c.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	_, err = c.Open(sealed)
	if !protocol.IsKind(err, protocol.EncryptionError) {
		t.Fatalf("Open() error = %v, want EncryptionError", err)
	}
}

func TestDifferentConfiguredKeysProduceDifferentCiphers(t *testing.T) {
	digest := [32]byte{4, 5, 6}
	a, _ := New(digest, "key-a")
	b, _ := New(digest, "key-b")

	sealed, err := a.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := b.Open(sealed); !protocol.IsKind(err, protocol.EncryptionError) {
		t.Fatalf("Open() across differing keys error = %v, want EncryptionError", err)
	}
}

func TestSealOverheadAndPayloadSizes(t *testing.T) {
	c, err := New([32]byte{7}, "preshared-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, size := range []int{0, 5, 32, 65536} {
		plain := make([]byte, size)
		sealed, err := c.Seal(plain)
		if err != nil {
			t.Fatalf("Seal(%d bytes) error = %v", size, err)
		}
		if len(sealed) != size+Overhead {
			t.Errorf("Seal(%d bytes) produced %d bytes, want %d", size, len(sealed), size+Overhead)
		}
		opened, err := c.Open(sealed)
		if err != nil {
			t.Fatalf("Open(%d bytes) error = %v", size, err)
		}
		if len(opened) != size {
			t.Errorf("Open() returned %d bytes, want %d", len(opened), size)
		}
	}
}

func TestOpenRejectsShortPayload(t *testing.T) {
	c, err := New([32]byte{8}, "preshared-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := c.Open(make([]byte, Overhead-1)); !protocol.IsKind(err, protocol.EncryptionError) {
		t.Fatalf("Open(short payload) error = %v, want EncryptionError", err)
	}
}

func TestSealNeverRepeatsNonces(t *testing.T) {
	c, err := New([32]byte{3}, "preshared-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		sealed, err := c.Seal([]byte("payload"))
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		nonce := string(sealed[:Overhead-16])
		if seen[nonce] {
			t.Fatalf("nonce repeated after %d seals", i)
		}
		seen[nonce] = true
	}
}

func BenchmarkSealVideoFramePayload(b *testing.B) {
	c, err := New([32]byte{1}, "preshared-key")
	if err != nil {
		b.Fatalf("New() error = %v", err)
	}
	payload := make([]byte, 65536)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Seal(payload); err != nil {
			b.Fatal(err)
		}
	}
}
