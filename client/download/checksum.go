package download

import (
	"encoding/hex"
	"hash"
	"strings"
)

// checksum is the digest a blob must match before it is written.
type checksum struct {
	newHash  func() hash.Hash
	expected string
}

// sum hashes data and reports the hex digest and whether it matches.
func (c *checksum) sum(data []byte) (string, bool) {
	h := c.newHash()
	h.Write(data)
	actual := hex.EncodeToString(h.Sum(nil))

	return actual, strings.EqualFold(actual, c.expected)
}
