package nedb

import "encoding/base64"

// newDocID mints a 16-character URL-safe random identifier (§4.8). This
// is deliberately not built on google/uuid: that package is wired for
// the correlation IDs the executor and compactor attach to log lines
// (§10), while document _id generation follows the spec's distinct
// 16-character scheme, sized off 16 raw random bytes rather than a
// UUID's 36-character/32-hex shape.
func newDocID(raw [16]byte) string {
	encoded := base64.RawURLEncoding.EncodeToString(raw[:])
	return encoded[:16]
}
