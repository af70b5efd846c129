package store

import (
	"context"
	"errors"

	"github.com/parleychat/parley/internal/session/domain"
)

// ErrNotFound is returned by Load when no credentials are persisted.
var ErrNotFound = errors.New("credentials not found")

// Store is the durable home of the current session's credentials.
// There is at most one persisted record; Save replaces it whole and
// Load observes either the previous full record or the new full
// record, never a mix of fields.
type Store interface {
	Load(ctx context.Context) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
	Close() error
}
