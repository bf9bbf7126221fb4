package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrDigestConflict means a row with the same token digest already
	// exists. With 256-bit digests this is a retry signal, not a
	// plausible steady state.
	ErrDigestConflict = errors.New("token digest already exists")

	// ErrUnavailable wraps database failures so callers can treat the
	// ledger being down differently from a plain miss.
	ErrUnavailable = errors.New("session ledger unavailable")
)

// Store persists sessions in a SQL database through GORM.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) a SQLite ledger at path and migrates the
// sessions table. TranslateError is required so unique violations
// surface as gorm.ErrDuplicatedKey across drivers.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open session ledger: %w", err)
	}
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, fmt.Errorf("migrate session ledger: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already open GORM handle. The handle must have been
// opened with TranslateError enabled and the sessions table migrated.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts the session row. The write is durable when Create
// returns; only then may the caller prewarm caches for this digest.
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess.TokenDigest == "" {
		return errors.New("session has empty token digest")
	}
	err := s.db.WithContext(ctx).Create(sess).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDigestConflict
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// FindActive returns the live session for digest, or (nil, nil) when no
// row exists or the row has expired. Expired rows are left in place;
// reaping is a separate concern.
func (s *Store) FindActive(ctx context.Context, digest string, nowMs int64) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Where("token_digest = ? AND expires_at > ?", digest, nowMs).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &sess, nil
}

// FindByDigest returns the session row regardless of expiry, or
// (nil, nil) when absent. Logout uses this to learn the issued expiry
// it must revoke until.
func (s *Store) FindByDigest(ctx context.Context, digest string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Where("token_digest = ?", digest).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &sess, nil
}

// DeleteByDigest removes the row for digest. Deleting a digest that has
// no row is not an error.
func (s *Store) DeleteByDigest(ctx context.Context, digest string) error {
	err := s.db.WithContext(ctx).
		Where("token_digest = ?", digest).
		Delete(&Session{}).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session row belonging to userID and
// returns the removed rows, so the caller can revoke each digest for
// exactly its issued lifetime.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) ([]Session, error) {
	var removed []Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Find(&removed).Error; err != nil {
			return err
		}
		if len(removed) == 0 {
			return nil
		}
		return tx.Where("user_id = ?", userID).Delete(&Session{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed, nil
}

// PurgeExpired deletes rows whose expiry is at or before nowMs and
// reports how many were removed. Intended for a periodic maintenance
// call; correctness never depends on it running.
func (s *Store) PurgeExpired(ctx context.Context, nowMs int64) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", nowMs).
		Delete(&Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}
