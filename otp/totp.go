package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// secretBytes is the raw secret length: 160 bits, matching the SHA-1 block
// recommendation from RFC 4226 §4.
const secretBytes = 20

// ErrEmptySecret is returned when code generation or verification is asked
// to operate on a zero-length secret.
var ErrEmptySecret = errors.New("otp: empty secret")

// Config tunes code shape and verification tolerance.
//
// Config instances are intended to be set once during initialization and then
// treated as immutable.
type Config struct {
	Issuer    string
	Digits    int
	Period    int    // seconds per counter step
	Algorithm string // SHA1 (default), SHA256, SHA512
	Skew      int    // counter steps accepted on each side of now
}

// Engine generates and verifies TOTP codes for a fixed [Config].
type Engine struct {
	config Config
}

// NewEngine returns an [Engine]. Zero Digits/Period/Algorithm fall back to
// the RFC 6238 interoperability defaults (6 digits, 30s, SHA1).
func NewEngine(cfg Config) *Engine {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	return &Engine{config: cfg}
}

// GenerateSecret draws a fresh 160-bit secret from crypto/rand and returns
// both the raw bytes and their Base32 form.
func (e *Engine) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	return raw, EncodeBase32(raw), nil
}

// GenerateCode returns the zero-padded code for the counter step containing
// the instant at.
func (e *Engine) GenerateCode(secretBase32 string, at time.Time) (string, error) {
	key, err := DecodeBase32(secretBase32)
	if err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", ErrEmptySecret
	}
	counter := at.Unix() / int64(e.config.Period)
	return hotpCode(key, counter, e.config.Digits, e.config.Algorithm)
}

// VerifyCode reports whether code is valid for any counter step within the
// skew window around at. All offsets are always evaluated and folded with
// constant-time comparisons so timing reveals neither a digit prefix match
// nor which offset matched.
func (e *Engine) VerifyCode(secretBase32, code string, at time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != e.config.Digits || !isDigits(trimmed) {
		return false, nil
	}

	key, err := DecodeBase32(secretBase32)
	if err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, ErrEmptySecret
	}

	baseCounter := at.Unix() / int64(e.config.Period)
	match := 0
	for step := -e.config.Skew; step <= e.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(key, counter, e.config.Digits, e.config.Algorithm)
		if err != nil {
			return false, err
		}
		match |= subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed))
	}

	return match == 1, nil
}

// ProvisioningURI renders the otpauth:// enrollment URI consumed by
// authenticator apps. Issuer and account label are percent-encoded; padding
// is stripped from the secret because several apps reject '=' in the
// secret parameter.
func (e *Engine) ProvisioningURI(secretBase32, account string) string {
	issuer := e.config.Issuer
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", strings.TrimRight(secretBase32, "="))
	v.Set("issuer", issuer)
	v.Set("algorithm", strings.ToUpper(e.config.Algorithm))
	v.Set("digits", strconv.Itoa(e.config.Digits))
	v.Set("period", strconv.Itoa(e.config.Period))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// hotpCode implements RFC 4226 §5.3 dynamic truncation.
func hotpCode(key []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hashFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hashFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("otp: unsupported algorithm")
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
