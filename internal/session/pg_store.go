package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists sessions in PostgreSQL:
//
//	CREATE TABLE sessions (
//	    sid        TEXT PRIMARY KEY,
//	    payload    JSONB NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
//
// Expired rows stay on disk until read (implicit destroy) or until the
// periodic sweep job removes them, so Count includes them.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, sid string) (Payload, bool, error) {
	var data []byte
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT payload, expires_at FROM sessions WHERE sid = $1`, sid).Scan(&data, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payload{}, false, nil
		}
		return Payload{}, false, err
	}
	if !expiresAt.After(time.Now()) {
		if err := s.Destroy(ctx, sid); err != nil {
			return Payload{}, false, err
		}
		return Payload{}, false, nil
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, false, err
	}
	return p, true, nil
}

func (s *PGStore) Set(ctx context.Context, sid string, p Payload, hint ExpiryHint) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (sid, payload, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (sid) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		sid, data, hint.Deadline(time.Now()))
	return err
}

func (s *PGStore) Touch(ctx context.Context, sid string, hint ExpiryHint) error {
	// UPDATE on a missing sid affects zero rows, which satisfies the
	// no-op contract without creating a record.
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET expires_at = $2 WHERE sid = $1`,
		sid, hint.Deadline(time.Now()))
	return err
}

func (s *PGStore) Destroy(ctx context.Context, sid string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE sid = $1`, sid)
	return err
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGStore) All(ctx context.Context) (map[string]Payload, error) {
	rows, err := s.pool.Query(ctx, `SELECT sid, payload FROM sessions WHERE expires_at > now()`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]Payload)
	for rows.Next() {
		var sid string
		var data []byte
		if err := rows.Scan(&sid, &data); err != nil {
			return nil, err
		}
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		out[sid] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions`)
	return err
}

// PurgeExpired deletes rows whose expiry has passed. Called by the sweep
// job; not part of the Store contract.
func (s *PGStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PGStore)(nil)
