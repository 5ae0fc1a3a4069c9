// Package adaptive provides authenticated encryption for the Glyph
// Engine's durable artifacts (WAL segments and snapshots).
//
// The cipher is selected at construction: AES-256-GCM on platforms
// where Go's crypto/aes runs hardware accelerated, ChaCha20-Poly1305
// elsewhere. Both are AEADs; the segment header carries the cipher
// name so files written on one platform decrypt on another.
//
// Usage:
//
//	key := adaptive.DeriveKey(secret, []byte("snapshot"))
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(payload, header)
package adaptive
