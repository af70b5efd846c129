package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/parleychat/parley/internal/session/domain"
	"github.com/parleychat/parley/internal/session/store"
	"github.com/parleychat/parley/pkg/cryptox"

	_ "modernc.org/sqlite"
)

// Store persists the single credential record in a local SQLite file.
// Token columns are sealed at rest; a record whose seal no longer
// opens (rotated master key, tampering) loads as not-found rather
// than as a broken session.
type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Serialize writers at the driver level; the credential table only
	// ever sees one writer at a time anyway.
	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the persisted session, or store.ErrNotFound when no
// usable record exists. A row without a user id counts as signed out.
func (s *Store) Load(ctx context.Context) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, email, full_name, avatar_url, access_token, refresh_token, expires_at
		FROM credentials WHERE id = 1`)

	var (
		sess          domain.Session
		sealedAccess  []byte
		sealedRefresh []byte
		expiresAt     time.Time
	)
	err := row.Scan(
		&sess.UserID, &sess.Email, &sess.FullName, &sess.AvatarURL,
		&sealedAccess, &sealedRefresh, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	if sess.UserID == "" {
		return domain.Session{}, store.ErrNotFound
	}

	access, err := cryptox.Open(sealedAccess)
	if err != nil {
		return domain.Session{}, store.ErrNotFound
	}
	sess.AccessToken = string(access)

	if len(sealedRefresh) > 0 {
		refresh, err := cryptox.Open(sealedRefresh)
		if err != nil {
			return domain.Session{}, store.ErrNotFound
		}
		sess.RefreshToken = string(refresh)
	}

	sess.ExpiresAt = expiresAt.UTC()
	return sess, nil
}

// Save replaces the persisted record with the given session in a
// single statement, so a concurrent Load sees the old record or the
// new one, never a mix.
func (s *Store) Save(ctx context.Context, sess domain.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("refusing to persist incomplete session")
	}

	sealedAccess, err := cryptox.Seal([]byte(sess.AccessToken))
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}

	var sealedRefresh []byte
	if sess.RefreshToken != "" {
		sealedRefresh, err = cryptox.Seal([]byte(sess.RefreshToken))
		if err != nil {
			return fmt.Errorf("failed to seal refresh token: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, user_id, email, full_name, avatar_url, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		sess.UserID, sess.Email, sess.FullName, sess.AvatarURL,
		sealedAccess, sealedRefresh, sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return nil
}

// Clear removes the persisted record. Clearing an already-empty store
// is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
