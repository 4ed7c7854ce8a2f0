package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/karsvik/authcore/audit"
)

// AppendSecurityLog inserts one append-only security log row. The typed
// metadata union is serialized to JSONB here, at the storage boundary.
func (s *Store) AppendSecurityLog(ctx context.Context, event audit.Event) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var metadata []byte
	if event.Metadata != nil {
		var err error
		metadata, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit metadata: %w", err)
		}
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO security_log (id, user_id, event_type, ip, user_agent, success, error, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.NewString(), event.UserID, string(event.Type), event.IP, event.UserAgent,
		event.Success, event.Error, metadata, event.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append security log: %w", err)
	}
	return nil
}
