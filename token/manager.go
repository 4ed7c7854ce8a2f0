package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature primitive.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key and verifies with the
	// corresponding public key.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrExpired reports a well-formed, correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrSignature reports a token whose signature does not verify.
	ErrSignature = errors.New("token signature invalid")
	// ErrMalformed reports a token that is not parseable as a signed JWT or
	// whose claims fail validation for any non-expiry reason.
	ErrMalformed = errors.New("token malformed")
)

// Config holds signing material and token lifetimes.
//
// Config instances are intended to be set once during initialization and then
// treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	Key           []byte // HMAC secret (hs256)
	PrivateKey    []byte // ed25519 seed-expanded private key or PEM
	PublicKey     []byte // ed25519 public key or PEM
	Issuer        string
	Leeway        time.Duration
	Clock         func() time.Time // defaults to time.Now
}

// Token-type claim values. Both token kinds are signed with the same key,
// so the typ claim is what keeps a refresh token from passing as an access
// token and vice versa.
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// AccessClaims is the access-token payload.
type AccessClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh-token payload. SessionID binds the token to a
// server-side session record; the token is unusable once that session is
// invalidated regardless of its own expiry.
type RefreshClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is an issued access/refresh token pair. Ephemeral: derived from
// signed claims and never stored.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Manager signs and verifies token pairs for a fixed [Config].
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Key) < 32 {
			return nil, errors.New("token: hs256 requires a key of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("token: unsupported signing method")
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// NewPair issues an access token carrying user identity claims and a refresh
// token bound to sessionID.
func (m *Manager) NewPair(userID, email, role, sessionID string) (Pair, error) {
	now := m.now()

	access := AccessClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	accessToken, err := m.sign(access)
	if err != nil {
		return Pair{}, err
	}

	refresh := RefreshClaims{
		UserID:    userID,
		SessionID: sessionID,
		TokenType: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.RefreshTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}
	refreshToken, err := m.sign(refresh)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// VerifyAccess parses and validates an access token, classifying failures
// into [ErrExpired], [ErrSignature], and [ErrMalformed].
func (m *Manager) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	// A refresh token is signed with the same key; without this check it
	// would pass as a long-lived access credential that bypasses session
	// revocation.
	if claims.TokenType != typeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrMalformed)
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token. Session liveness is the
// caller's responsibility; a verified refresh token only proves possession.
func (m *Manager) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrMalformed)
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session binding", ErrMalformed)
	}
	return claims, nil
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return fmt.Errorf("%w: %v", ErrExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return fmt.Errorf("%w: %v", ErrSignature, err)
		default:
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if !tok.Valid {
		return ErrMalformed
	}
	return nil
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(m.config.PrivateKey)
	default:
		return m.config.Key, nil
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(m.config.PublicKey)
	default:
		return m.config.Key, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 public key type")
	}
	return edKey, nil
}
