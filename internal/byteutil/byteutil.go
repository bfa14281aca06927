// Package byteutil provides the fixed-width integer codec, UTF-8/base64
// helpers, and cryptographic random values the page store builds on.
package byteutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
)

// PutUint32 writes v as a 4-byte big-endian value into buf[0:4].
func PutUint32(buf []byte, v uint32) {
	binary.BigEndian.PutUint32(buf, v)
}

// Uint32 reads a 4-byte big-endian value from buf[0:4].
func Uint32(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf)
}

// PutUint64 writes v as an 8-byte big-endian value into buf[0:8].
func PutUint64(buf []byte, v uint64) {
	binary.BigEndian.PutUint64(buf, v)
}

// Uint64 reads an 8-byte big-endian value from buf[0:8].
func Uint64(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

// EncodeString returns the UTF-8 bytes of s.
func EncodeString(s string) []byte {
	return []byte(s)
}

// DecodeString interprets b as UTF-8.
func DecodeString(b []byte) string {
	return string(b)
}

// EncodeBase64 encodes b using unpadded URL-safe base64.
func EncodeBase64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64 decodes an unpadded URL-safe base64 string.
func DecodeBase64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// RandomUint32 returns a cryptographically random 32-bit value, used to
// salt record identifiers.
func RandomUint32() (uint32, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return Uint32(buf[:]), nil
}

// RandomUint64 returns a cryptographically random 64-bit value, used to
// seed the identifier obfuscator's secret key.
func RandomUint64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return Uint64(buf[:]), nil
}
