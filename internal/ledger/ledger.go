// Package ledger keeps the ordered, capped list of history entries.
package ledger

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

const (
	DefaultMaxItems     = 50
	DefaultPreviewChars = 100
)

// Ledger stores entries newest-first by insertion sequence.
type Ledger struct {
	db           *sql.DB
	maxItems     int
	previewChars int
	newID        func() (string, error)
	now          func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMaxItems sets the entry cap. Values below 1 are ignored.
func WithMaxItems(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxItems = n
		}
	}
}

// WithPreviewChars sets the text preview length. Values below 1 are ignored.
func WithPreviewChars(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.previewChars = n
		}
	}
}

// WithIDGenerator overrides the ULID generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(l *Ledger) { l.newID = fn }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) { l.now = fn }
}

// New returns a Ledger backed by database.
func New(database *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:           database,
		maxItems:     DefaultMaxItems,
		previewChars: DefaultPreviewChars,
		newID:        clip.NewID,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordText prepends a text entry.
// Any existing entry with identical text is removed first, so re-copying moves it to the front.
func (l *Ledger) RecordText(ctx context.Context, text string) (*clip.Entry, error) {
	if clip.IsBlank(text) {
		return nil, errors.NewEmptyInput()
	}

	raw := text
	entry := &clip.Entry{
		Kind:    clip.KindText,
		Preview: clip.TextPreview(text, l.previewChars),
		Text:    &raw,
	}

	err := l.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM entries WHERE kind = 'text' AND raw_text = ?", text); err != nil {
			return err
		}
		return l.insert(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordImage prepends an image entry. payloadRef may be nil, producing a ghost.
// Image entries are never deduplicated by content.
func (l *Ledger) RecordImage(ctx context.Context, payloadRef *string, sizeBytes int64, sourceURL string) (*clip.Entry, error) {
	return l.RecordImageWithMime(ctx, payloadRef, sizeBytes, "", sourceURL)
}

// RecordImageWithMime is RecordImage with the payload mime type kept on the entry.
func (l *Ledger) RecordImageWithMime(ctx context.Context, payloadRef *string, sizeBytes int64, mimeType, sourceURL string) (*clip.Entry, error) {
	if sizeBytes < 0 {
		return nil, errors.NewInvalidPayload("image size must be >= 0")
	}

	var ref *string
	if payloadRef != nil {
		r := *payloadRef
		ref = &r
	}
	entry := &clip.Entry{
		Kind:       clip.KindImage,
		Preview:    clip.ImagePreview(sizeBytes),
		PayloadRef: ref,
		SizeBytes:  sizeBytes,
		MimeType:   mimeType,
		SourceURL:  sourceURL,
	}

	if err := l.withTx(ctx, func(tx *sql.Tx) error {
		return l.insert(ctx, tx, entry)
	}); err != nil {
		return nil, err
	}
	return entry, nil
}

// insert assigns id, timestamp and seq to entry, writes it, and trims the tail to the cap.
func (l *Ledger) insert(ctx context.Context, tx *sql.Tx, entry *clip.Entry) error {
	id, err := l.newID()
	if err != nil {
		return errors.NewInternal(err)
	}
	entry.ID = id

	// Clamp to the high-water mark so CreatedAt never decreases across insertions,
	// even after the newest entry has been removed.
	now := db.ToUnixNano(l.now())
	var last int64
	if err := tx.QueryRowContext(ctx, "SELECT last_created_at FROM ledger_state WHERE id = 1").Scan(&last); err != nil {
		return err
	}
	if last > now {
		now = last
	}
	entry.CreatedAt = db.FromUnixNano(now)

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (id, kind, created_at, preview, payload_ref, raw_text, size_bytes, mime_type, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind), now, entry.Preview,
		db.ToNullString(entry.PayloadRef), db.ToNullString(entry.Text),
		entry.SizeBytes, nullIfEmpty(entry.MimeType), nullIfEmpty(entry.SourceURL),
	)
	if err != nil {
		if db.IsUniqueConstraintError(err) {
			return errors.NewStorageConflict(entry.ID)
		}
		return err
	}
	if entry.Seq, err = res.LastInsertId(); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE ledger_state SET last_created_at = MAX(last_created_at, ?), generation = generation + 1
		WHERE id = 1`, now); err != nil {
		return err
	}

	_, err = trimTx(ctx, tx, l.maxItems)
	return err
}

// Remove deletes the entry with id and returns it, or nil if there was none.
func (l *Ledger) Remove(ctx context.Context, id string) (*clip.Entry, error) {
	var removed *clip.Entry
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		e, err := scanEntry(tx.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ?", id))
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
			return err
		}
		removed = e
		return bumpTx(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Clear removes every entry matching pred and returns how many were removed.
func (l *Ledger) Clear(ctx context.Context, pred clip.Predicate) (int, error) {
	if pred == nil {
		pred = clip.All
	}

	var n int
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		entries, err := queryEntries(ctx, tx, "SELECT "+entryColumns+" FROM entries ORDER BY seq DESC")
		if err != nil {
			return err
		}
		var ids []any
		for _, e := range entries {
			if pred(e) {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		res, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id IN ("+placeholders+")", ids...)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		n = int(affected)
		return bumpTx(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GetAll returns all entries, newest insertion first.
func (l *Ledger) GetAll(ctx context.Context) ([]clip.Entry, error) {
	entries, err := queryEntries(ctx, l.db, "SELECT "+entryColumns+" FROM entries ORDER BY seq DESC")
	if err != nil {
		return nil, db.Unavailable(err)
	}
	return entries, nil
}

// Get returns one entry or NOT_FOUND.
func (l *Ledger) Get(ctx context.Context, id string) (*clip.Entry, error) {
	e, err := scanEntry(l.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ?", id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, db.Unavailable(err)
	}
	return e, nil
}

// Count returns the number of entries.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, db.Unavailable(err)
	}
	return n, nil
}

// PayloadRefs returns the set of image ids referenced by entries.
func (l *Ledger) PayloadRefs(ctx context.Context) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT payload_ref FROM entries WHERE payload_ref IS NOT NULL")
	if err != nil {
		return nil, db.Unavailable(err)
	}
	defer rows.Close()

	refs := make(map[string]bool)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, db.Unavailable(err)
		}
		refs[ref] = true
	}
	if err := rows.Err(); err != nil {
		return nil, db.Unavailable(err)
	}
	return refs, nil
}

// Trim drops tail entries beyond the cap and returns how many were dropped.
// Inserts already trim; this repairs a ledger written with a larger cap.
func (l *Ledger) Trim(ctx context.Context) (int, error) {
	var n int
	err := l.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = trimTx(ctx, tx, l.maxItems)
		if err != nil || n == 0 {
			return err
		}
		return bumpTx(ctx, tx)
	})
	return n, err
}

// Generation returns a counter that grows with every ledger mutation, from any process
// sharing the database.
func (l *Ledger) Generation(ctx context.Context) (int64, error) {
	var gen int64
	if err := l.db.QueryRowContext(ctx, "SELECT generation FROM ledger_state WHERE id = 1").Scan(&gen); err != nil {
		return 0, db.Unavailable(err)
	}
	return gen, nil
}

func bumpTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, "UPDATE ledger_state SET generation = generation + 1 WHERE id = 1")
	return err
}

func trimTx(ctx context.Context, tx *sql.Tx, maxItems int) (int, error) {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM entries
		WHERE seq NOT IN (SELECT seq FROM entries ORDER BY seq DESC LIMIT ?)`, maxItems)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// withTx runs fn in a transaction, mapping backend failures to STORAGE_UNAVAILABLE.
func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return db.Unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return db.Unavailable(err)
	}
	return nil
}

const entryColumns = "seq, id, kind, created_at, preview, payload_ref, raw_text, size_bytes, mime_type, source_url"

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanEntry(row scanner) (*clip.Entry, error) {
	var e clip.Entry
	var kind string
	var createdAt int64
	var payloadRef, rawText, mimeType, sourceURL sql.NullString
	if err := row.Scan(&e.Seq, &e.ID, &kind, &createdAt, &e.Preview,
		&payloadRef, &rawText, &e.SizeBytes, &mimeType, &sourceURL); err != nil {
		return nil, err
	}
	e.Kind = clip.Kind(kind)
	e.CreatedAt = db.FromUnixNano(createdAt)
	e.PayloadRef = db.FromNullString(payloadRef)
	e.Text = db.FromNullString(rawText)
	e.MimeType = mimeType.String
	e.SourceURL = sourceURL.String
	return &e, nil
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]clip.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []clip.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
