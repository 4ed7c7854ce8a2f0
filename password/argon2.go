package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

// Parameter floors. Configurations below these are rejected rather than
// silently raised.
const (
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPasswordLen        = 8
)

var (
	// ErrPasswordTooShort rejects passwords under the minimum byte length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrHashFormat reports an encoded hash that does not parse as a
	// supported argon2id PHC string.
	ErrHashFormat = errors.New("malformed password hash")
)

// Config carries the Argon2id cost parameters. Set once, never mutate.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 is a [Config]-fixed hasher. Safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password: memory must be >= %d KiB", minMemoryKB)
	case cfg.Time < 1:
		return nil, errors.New("password: time cost must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password: parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password: salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password: key length must be >= %d", minKeyLength)
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted hash and returns it PHC-encoded. Password
// bytes are used exactly as provided; no normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrPasswordTooShort
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt,
		a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash under the parameters embedded in encodedHash
// and compares in constant time. The stored parameters, not the hasher's,
// govern the computation so old hashes keep verifying after a policy bump.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	p, err := parse(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), p.salt,
		p.time, p.memory, p.parallelism, uint32(len(p.key)))

	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced under weaker
// parameters than the hasher is configured for. Callers typically rehash
// on the next successful login.
func (a *Argon2) NeedsRehash(encodedHash string) (bool, error) {
	p, err := parse(encodedHash)
	if err != nil {
		return false, err
	}

	weaker := p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.parallelism < a.config.Parallelism ||
		uint32(len(p.key)) != a.config.KeyLength
	return weaker, nil
}

type phcParts struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parse(encodedHash string) (*phcParts, error) {
	// $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>
	fields := strings.Split(encodedHash, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != phcAlgorithm {
		return nil, ErrHashFormat
	}

	version, err := strconv.Atoi(strings.TrimPrefix(fields[2], "v="))
	if err != nil || !strings.HasPrefix(fields[2], "v=") || version != argon2.Version {
		return nil, ErrHashFormat
	}

	var p phcParts
	var memory, timeCost, parallelism uint64
	for _, kv := range strings.Split(fields[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, ErrHashFormat
		}
		switch name {
		case "m":
			memory, err = strconv.ParseUint(value, 10, 32)
		case "t":
			timeCost, err = strconv.ParseUint(value, 10, 32)
		case "p":
			parallelism, err = strconv.ParseUint(value, 10, 8)
		default:
			return nil, ErrHashFormat
		}
		if err != nil {
			return nil, ErrHashFormat
		}
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return nil, ErrHashFormat
	}
	p.memory = uint32(memory)
	p.time = uint32(timeCost)
	p.parallelism = uint8(parallelism)

	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, ErrHashFormat
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, ErrHashFormat
	}
	if len(p.salt) < int(minSaltLength) || len(p.key) < int(minKeyLength) {
		return nil, ErrHashFormat
	}
	return &p, nil
}
