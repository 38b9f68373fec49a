package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/text/unicode/norm"
)

// Hash returns the canonical content hash of a generic JSON document:
// object keys sorted lexicographically, no insignificant whitespace,
// Unicode normalized to NFC.
//
// encoding/json already sorts map[string]interface{} keys lexicographically
// and emits no insignificant whitespace, so canonicalization reduces to
// normalizing the serialized string before hashing.
func Hash(doc interface{}) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	normalized := norm.NFC.Bytes(data)
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}
