package hash

import "testing"

func TestSHA256Hasher_HashBytes(t *testing.T) {
	hasher := NewSHA256Hasher()

	t.Run("known digest", func(t *testing.T) {
		// sha256("hello world")
		want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
		if got := hasher.HashBytes([]byte("hello world")); got != want {
			t.Errorf("HashBytes = %s, want %s", got, want)
		}
	})

	t.Run("same content produces same hash", func(t *testing.T) {
		a := hasher.HashBytes([]byte(`{"labels":["Alpha"]}`))
		b := hasher.HashBytes([]byte(`{"labels":["Alpha"]}`))
		if a != b {
			t.Errorf("identical content hashed differently: %s vs %s", a, b)
		}
	})

	t.Run("different content produces different hash", func(t *testing.T) {
		a := hasher.HashBytes([]byte(`{"labels":["Alpha"]}`))
		b := hasher.HashBytes([]byte(`{"labels":["Beta"]}`))
		if a == b {
			t.Error("different content produced the same hash")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
		if got := hasher.HashBytes(nil); got != want {
			t.Errorf("HashBytes(nil) = %s, want %s", got, want)
		}
	})
}

func TestFakeHasher_HashBytes(t *testing.T) {
	h := &FakeHasher{}
	if got := h.HashBytes([]byte("anything")); got != "fakehash" {
		t.Errorf("default digest = %q, want %q", got, "fakehash")
	}

	h.Digest = "fixed"
	if got := h.HashBytes([]byte("a")); got != "fixed" {
		t.Errorf("digest = %q, want %q", got, "fixed")
	}
}
