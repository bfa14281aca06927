// Package idcodec implements the bijective, length-preserving transform
// between a record's (pageIndex, slot, salt) triple and the opaque string
// identifier handed to callers, per §3.5 and §4.D.3.
//
// The triple is first rendered as three 8-hex-digit zero-padded fields,
// concatenated and base64-url-encoded (producing a fixed 32-symbol
// string), then passed through a keyed balanced Feistel network acting on
// 32-symbol strings over the 64-symbol Alphabet. Keying the Feistel round
// function by the root chunk's secret means two stores never produce the
// same ID for the same triple, and a caller cannot forge a valid ID without
// the secret — while the transform itself stays a pure bijection over
// fixed-length strings.
package idcodec

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/klaf-go/klaf/internal/byteutil"
)

// Alphabet is the 64-symbol URL-safe alphabet identifiers are drawn from.
// It is identical to the standard unpadded base64-url alphabet, so the
// intermediate base64 step and the Feistel step share one symbol space.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

const (
	hexFieldWidth = 8  // zero-padded hex digits per component
	numComponents = 3  // pageIndex, slot, salt
	rounds        = 10 // Feistel rounds
)

// IDLength is the fixed length, in symbols, of every identifier this
// package produces.
var IDLength = b64Length(hexFieldWidth * numComponents)

func b64Length(rawBytes int) int {
	// RawURLEncoding: ceil(n*8/6) output symbols for n input bytes.
	return (rawBytes*8 + 5) / 6
}

// Codec encodes and decodes (pageIndex, slot, salt) triples, keyed by a
// root chunk's secret.
type Codec struct {
	key      []byte
	halfLen  int
	modulus  *big.Int
	alphaIdx [256]int8
}

// New builds a Codec keyed by secret (the root chunk's 8-byte secret field).
func New(secret uint64) *Codec {
	key := make([]byte, 8)
	for i := 0; i < 8; i++ {
		key[i] = byte(secret >> (56 - 8*i))
	}
	c := &Codec{key: key}
	if IDLength%2 != 0 {
		panic("idcodec: identifier length must be even for a balanced Feistel split")
	}
	c.halfLen = IDLength / 2
	c.modulus = new(big.Int).Exp(big.NewInt(64), big.NewInt(int64(c.halfLen)), nil)
	for i := range c.alphaIdx {
		c.alphaIdx[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		c.alphaIdx[Alphabet[i]] = int8(i)
	}
	return c
}

// Encode produces the opaque identifier for (pageIndex, slot, salt).
func (c *Codec) Encode(pageIndex, slot, salt uint32) string {
	hex := fmt.Sprintf("%0*x%0*x%0*x", hexFieldWidth, pageIndex, hexFieldWidth, slot, hexFieldWidth, salt)
	b64 := rawBase64Encode(hex)
	return c.feistelEncrypt(b64)
}

// Decode reverses Encode, recovering (pageIndex, slot, salt). It returns an
// error if id has the wrong length or characters outside the alphabet, or
// if the decrypted string is not base64 of three hex fields — which is
// what most forged IDs decrypt to. A forged ID that does decode yields
// *some* triple, which the page store then rejects via the salt check in
// Pick (§4.D.3 step 4); Pick reports both cases as ErrInvalidRecord.
func (c *Codec) Decode(id string) (pageIndex, slot, salt uint32, err error) {
	if len(id) != IDLength {
		return 0, 0, 0, fmt.Errorf("idcodec: identifier has length %d, want %d", len(id), IDLength)
	}
	b64, err := c.feistelDecrypt(id)
	if err != nil {
		return 0, 0, 0, err
	}
	hex, err := rawBase64Decode(b64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("idcodec: %w", err)
	}
	if len(hex) != hexFieldWidth*numComponents {
		return 0, 0, 0, fmt.Errorf("idcodec: decoded payload has length %d, want %d", len(hex), hexFieldWidth*numComponents)
	}
	fields := make([]uint32, numComponents)
	for i := 0; i < numComponents; i++ {
		var v uint32
		_, err := fmt.Sscanf(hex[i*hexFieldWidth:(i+1)*hexFieldWidth], "%08x", &v)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("idcodec: malformed component %d: %w", i, err)
		}
		fields[i] = v
	}
	return fields[0], fields[1], fields[2], nil
}

// feistelEncrypt runs the forward Feistel rounds over a fixed-length
// alphabet string.
func (c *Codec) feistelEncrypt(s string) string {
	left := c.stringToInt(s[:c.halfLen])
	right := c.stringToInt(s[c.halfLen:])
	for r := 0; r < rounds; r++ {
		f := c.roundFunc(right, r)
		newRight := new(big.Int).Add(left, f)
		newRight.Mod(newRight, c.modulus)
		left, right = right, newRight
	}
	return c.intToString(left, c.halfLen) + c.intToString(right, c.halfLen)
}

// feistelDecrypt runs the Feistel rounds in reverse, recovering the
// original alphabet string.
func (c *Codec) feistelDecrypt(s string) (string, error) {
	for i := 0; i < len(s); i++ {
		if c.alphaIdx[s[i]] < 0 {
			return "", fmt.Errorf("idcodec: character %q outside alphabet", s[i])
		}
	}
	left := c.stringToInt(s[:c.halfLen])
	right := c.stringToInt(s[c.halfLen:])
	for r := rounds - 1; r >= 0; r-- {
		f := c.roundFunc(left, r)
		newLeft := new(big.Int).Sub(right, f)
		newLeft.Mod(newLeft, c.modulus)
		left, right = newLeft, left
	}
	return c.intToString(left, c.halfLen) + c.intToString(right, c.halfLen), nil
}

// roundFunc derives a pseudo-random value in [0, modulus) from the round
// index and the current half, keyed by the codec's secret.
func (c *Codec) roundFunc(half *big.Int, round int) *big.Int {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte{byte(round)})
	mac.Write(half.Bytes())
	digest := mac.Sum(nil)
	n := new(big.Int).SetBytes(digest)
	return n.Mod(n, c.modulus)
}

func (c *Codec) stringToInt(s string) *big.Int {
	n := new(big.Int)
	base := big.NewInt(64)
	for i := 0; i < len(s); i++ {
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(c.alphaIdx[s[i]])))
	}
	return n
}

func (c *Codec) intToString(n *big.Int, length int) string {
	digits := make([]byte, length)
	base := big.NewInt(64)
	rem := new(big.Int)
	tmp := new(big.Int).Set(n)
	for i := length - 1; i >= 0; i-- {
		tmp.DivMod(tmp, base, rem)
		digits[i] = Alphabet[rem.Int64()]
	}
	return string(digits)
}

// rawBase64Encode/rawBase64Decode wrap byteutil's unpadded URL-safe base64
// codec, whose alphabet is identical to Alphabet — the Feistel step below
// reuses the same 64 symbols it just produced.
func rawBase64Encode(s string) string {
	return byteutil.EncodeBase64(byteutil.EncodeString(s))
}

func rawBase64Decode(s string) (string, error) {
	b, err := byteutil.DecodeBase64(s)
	if err != nil {
		return "", err
	}
	return byteutil.DecodeString(b), nil
}
