package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("Karma Police", "Radiohead", "OK Computer")
	b := Fingerprint("Karma Police", "Radiohead", "OK Computer")

	assert.Equal(t, a, b)
	assert.Len(t, a, 40)
}

func TestFingerprint_Distinct(t *testing.T) {
	base := Fingerprint("Karma Police", "Radiohead", "OK Computer")

	variants := [][3]string{
		{"Karma Police ", "Radiohead", "OK Computer"},
		{"Karma police", "Radiohead", "OK Computer"},
		{"Karma Police", "Radiohead", "OK Computer OKNOTOK"},
		{"Karma Police", "Thom Yorke", "OK Computer"},
		{"Radiohead", "Karma Police", "OK Computer"},
	}
	for _, v := range variants {
		assert.NotEqual(t, base, Fingerprint(v[0], v[1], v[2]), "variant %q", v)
	}
}

func TestFingerprint_KnownValue(t *testing.T) {
	// sha1("a - b on c")
	assert.Equal(t, "f16e1b7449ad9fb0bdb61d69feb01c3fc1308156", Fingerprint("a", "b", "c"))
}
