// Package blobstore persists binary image payloads keyed by generated ids.
package blobstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/db"
	"github.com/hpungsan/sideclip/internal/errors"
)

// Store holds ImageRecords in the images table.
type Store struct {
	db    *sql.DB
	newID func() (string, error)
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the ULID generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// New returns a Store backed by database.
func New(database *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    database,
		newID: clip.NewID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores data and returns the new record.
// An id collision is retried once with a fresh id before giving up with STORAGE_CONFLICT.
func (s *Store) Put(ctx context.Context, data []byte, mimeType, sourceURL string) (*clip.ImageRecord, error) {
	if len(data) == 0 {
		return nil, errors.NewInvalidPayload("image bytes are empty")
	}

	rec := &clip.ImageRecord{
		Bytes:     data,
		SizeBytes: int64(len(data)),
		MimeType:  clip.DetectMime(data, mimeType),
		SourceURL: sourceURL,
		CreatedAt: s.now().UTC(),
	}

	var lastID string
	for attempt := 0; attempt < 2; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		lastID = id
		rec.ID = id

		err = s.insert(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !db.IsUniqueConstraintError(err) {
			return nil, db.Unavailable(err)
		}
	}

	return nil, errors.NewStorageConflict(lastID)
}

func (s *Store) insert(ctx context.Context, rec *clip.ImageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, bytes, size_bytes, mime_type, source_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Bytes, rec.SizeBytes, rec.MimeType, rec.SourceURL, db.ToUnixNano(rec.CreatedAt),
	)
	return err
}

// GetAll returns every record including bytes. Order is unspecified.
func (s *Store) GetAll(ctx context.Context) ([]clip.ImageRecord, error) {
	return s.list(ctx, true)
}

// GetAllMeta returns every record without bytes.
func (s *Store) GetAllMeta(ctx context.Context) ([]clip.ImageRecord, error) {
	return s.list(ctx, false)
}

func (s *Store) list(ctx context.Context, withBytes bool) ([]clip.ImageRecord, error) {
	cols := "id, NULL, size_bytes, mime_type, source_url, created_at"
	if withBytes {
		cols = "id, bytes, size_bytes, mime_type, source_url, created_at"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+cols+" FROM images ORDER BY seq")
	if err != nil {
		return nil, db.Unavailable(err)
	}
	defer rows.Close()

	records := []clip.ImageRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, db.Unavailable(err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable(err)
	}
	return records, nil
}

// Get returns one record with bytes, or NOT_FOUND.
func (s *Store) Get(ctx context.Context, id string) (*clip.ImageRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bytes, size_bytes, mime_type, source_url, created_at
		FROM images WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, db.Unavailable(err)
	}
	return rec, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, db.Unavailable(err)
	}
	return n, nil
}

// Delete removes the record with id. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id); err != nil {
		return db.Unavailable(err)
	}
	return nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return db.Unavailable(err)
	}
	return nil
}

// EvictOldest deletes the oldest records until at most maxItems remain.
// Victims are chosen from a snapshot taken at call time (oldest CreatedAt first,
// insertion order on ties); records inserted after the snapshot are never removed.
// Returns the number of records deleted.
func (s *Store) EvictOldest(ctx context.Context, maxItems int) (int, error) {
	if maxItems < 0 {
		return 0, errors.NewInvalidRequest("maxItems must be >= 0")
	}

	ids, err := s.snapshotOldest(ctx)
	if err != nil {
		return 0, err
	}
	return s.evictFrom(ctx, ids, maxItems)
}

// snapshotOldest returns every record id, oldest CreatedAt first, insertion order on ties.
func (s *Store) snapshotOldest(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM images ORDER BY created_at ASC, seq ASC")
	if err != nil {
		return nil, db.Unavailable(err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, db.Unavailable(err)
	}
	return ids, nil
}

// evictFrom deletes the head of snapshot so that at most maxItems of it remain.
func (s *Store) evictFrom(ctx context.Context, snapshot []string, maxItems int) (int, error) {
	excess := len(snapshot) - maxItems
	if excess <= 0 {
		return 0, nil
	}
	return s.deleteIDs(ctx, snapshot[:excess])
}

// PruneUnreferenced deletes records that no ledger entry references and that were created before olderThan.
// The cutoff leaves room for a capture between its blob write and its ledger write.
func (s *Store) PruneUnreferenced(ctx context.Context, referenced map[string]bool, olderThan time.Time) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM images WHERE created_at < ? ORDER BY created_at ASC, seq ASC",
		db.ToUnixNano(olderThan))
	if err != nil {
		return 0, db.Unavailable(err)
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return 0, db.Unavailable(err)
	}

	var victims []string
	for _, id := range ids {
		if !referenced[id] {
			victims = append(victims, id)
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}
	return s.deleteIDs(ctx, victims)
}

// deleteIDs removes ids in one transaction and returns how many rows went away.
func (s *Store) deleteIDs(ctx context.Context, ids []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, db.Unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM images WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, db.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, db.Unavailable(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*clip.ImageRecord, error) {
	var rec clip.ImageRecord
	var createdAt int64
	if err := row.Scan(&rec.ID, &rec.Bytes, &rec.SizeBytes, &rec.MimeType, &rec.SourceURL, &createdAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = db.FromUnixNano(createdAt)
	return &rec, nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
