package resolve

import (
	"crypto/sha1" //nolint:gosec // identity hash, not a security boundary
	"encoding/hex"
)

// Fingerprint derives the stable identity of a track from its already
// normalised names. Equal inputs always give equal fingerprints.
func Fingerprint(track, artist, album string) string {
	sum := sha1.Sum([]byte(track + " - " + artist + " on " + album)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
