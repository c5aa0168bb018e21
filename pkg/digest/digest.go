// Package digest produces the integrity fingerprint anchored for each
// transaction. The serialization is the cross-implementation contract:
// field names sorted lexicographically, compact JSON, UTF-8, SHA-256.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Record is the canonical field map describing a transaction or status
// update. Insertion order is irrelevant to the resulting digest.
type Record map[string]interface{}

// Sum returns the lowercase hex SHA-256 digest of the record's canonical
// serialization. encoding/json marshals map keys in sorted order with no
// whitespace, which is exactly the canonical form.
func Sum(r Record) string {
	data, err := json.Marshal(r)
	if err != nil {
		// Records are built from plain strings and numbers; a marshal
		// failure means a programming error upstream.
		panic(err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
