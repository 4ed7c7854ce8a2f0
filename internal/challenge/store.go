// Package challenge stores pending two-factor login attempts in Redis. A
// challenge is created after a correct password when 2FA is enabled, and is
// consumed (or exhausted) by code verification. Attempt counting uses
// WATCH/MULTI so two concurrent wrong codes cannot share one attempt slot.
package challenge

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const recordVersion = 1

var (
	ErrNotFound         = errors.New("login attempt not found")
	ErrExpired          = errors.New("login attempt expired")
	ErrAttemptsExceeded = errors.New("login attempt budget exceeded")
	ErrBackend          = errors.New("login attempt backend unavailable")
)

// Record is one pending two-factor login attempt.
type Record struct {
	UserID    string
	IP        string
	UserAgent string
	ExpiresAt int64
	Attempts  uint16
}

// Store keeps challenge records under a TTL'd Redis key per attempt ID.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore returns a Store. Empty prefix defaults to "login_attempt".
func NewStore(client redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if prefix == "" {
		prefix = "login_attempt"
	}
	if now == nil {
		now = time.Now
	}
	return &Store{redis: client, prefix: prefix, now: now}
}

func (s *Store) key(attemptID string) string {
	return s.prefix + ":" + attemptID
}

// Create stores a new challenge and returns its attempt ID.
func (s *Store) Create(ctx context.Context, userID, ip, userAgent string, ttl time.Duration) (string, error) {
	attemptID := uuid.NewString()
	record := &Record{
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: s.now().Add(ttl).Unix(),
	}
	encoded, err := encodeRecord(record)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(attemptID), encoded, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return attemptID, nil
}

// Get loads a challenge, deleting and reporting it expired when its own
// deadline has passed even if the key TTL has not fired yet.
func (s *Store) Get(ctx context.Context, attemptID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(attemptID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(attemptID)).Result()
		return nil, ErrExpired
	}
	return record, nil
}

// Consume deletes the challenge, reporting whether it existed. A challenge
// is single-use: successful verification consumes it.
func (s *Store) Consume(ctx context.Context, attemptID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(attemptID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter under WATCH. When the
// post-increment count reaches maxAttempts the challenge is deleted and
// exceeded=true is returned; further codes for this attempt ID cannot
// succeed.
func (s *Store) RecordFailure(ctx context.Context, attemptID string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(attemptID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			record, err := decodeRecord(data)
			if err != nil {
				return err
			}

			ttl := time.Unix(record.ExpiresAt, 0).Sub(s.now())
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			updated, err := encodeRecord(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, ErrNotFound
			}
			if errors.Is(err, ErrExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		return exceeded, nil
	}

	// The challenge still exists; we just kept losing the WATCH race.
	return false, fmt.Errorf("%w: watch retries exhausted", ErrBackend)
}

func encodeRecord(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion)

	for _, field := range []string{r.UserID, r.IP, r.UserAgent} {
		if len(field) > 255 {
			return nil, errors.New("challenge field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.Attempts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersion {
		return nil, errors.New("invalid challenge record version")
	}

	r := &Record{}
	for _, field := range []*string{&r.UserID, &r.IP, &r.UserAgent} {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.Attempts); err != nil {
		return nil, err
	}
	return r, nil
}
