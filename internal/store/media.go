package store

import (
	"context"
	"database/sql"
	"fmt"
)

type mediaStatements struct {
	insertMedia                 *sql.Stmt
	insertAlbumMedia            *sql.Stmt
	deleteMediaByID             *sql.Stmt
	deleteAllMedia              *sql.Stmt
	deleteAllAlbum              *sql.Stmt
	deleteAllAlbumsForAuthority *sql.Stmt
}

func (d *DB) prepareMediaStmts(ctx context.Context) error {
	return prepareAll(ctx, d.conn, []stmtDef{
		{&d.media.insertMedia, `INSERT INTO media
			(authority, local_id, cloud_id, date_taken_ms, generation_modified,
			 is_visible, size_bytes, mime_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(authority, local_id, cloud_id) DO UPDATE SET
				date_taken_ms       = excluded.date_taken_ms,
				generation_modified = excluded.generation_modified,
				is_visible          = excluded.is_visible,
				size_bytes          = excluded.size_bytes,
				mime_type           = excluded.mime_type`, "insertMedia"},
		{&d.media.insertAlbumMedia, `INSERT INTO album_media
			(authority, album_id, local_id, cloud_id, date_taken_ms,
			 generation_modified, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(authority, album_id, local_id, cloud_id) DO UPDATE SET
				date_taken_ms       = excluded.date_taken_ms,
				generation_modified = excluded.generation_modified`, "insertAlbumMedia"},
		{&d.media.deleteMediaByID, `DELETE FROM media
			WHERE authority = ? AND
				((local_id = ? AND ? != '') OR (cloud_id = ? AND ? != ''))`, "deleteMediaByID"},
		{&d.media.deleteAllMedia, `DELETE FROM media WHERE authority = ?`, "deleteAllMedia"},
		{&d.media.deleteAllAlbum, `DELETE FROM album_media WHERE authority = ? AND album_id = ?`, "deleteAllAlbum"},
		{&d.media.deleteAllAlbumsForAuthority, `DELETE FROM album_media WHERE authority = ?`, "deleteAllAlbumsForAuthority"},
	})
}

func (d *DB) closeMediaStmts() error {
	stmts := []*sql.Stmt{
		d.media.insertMedia, d.media.insertAlbumMedia,
		d.media.deleteMediaByID, d.media.deleteAllMedia, d.media.deleteAllAlbum,
		d.media.deleteAllAlbumsForAuthority,
	}

	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}

		if err := stmt.Close(); err != nil {
			return err
		}
	}

	return nil
}

// MediaItem is a single media row as reported by a provider page, keyed
// by local ID, cloud ID, or both when the same asset exists in two
// namespaces.
type MediaItem struct {
	LocalID            string
	CloudID            string
	DateTakenMs        int64
	GenerationModified int64
	IsVisible          bool
	SizeBytes          int64
	MimeType           string
}

// MediaID identifies a single item to remove, by whichever ID the
// provider reported the deletion under.
type MediaID struct {
	LocalID string
	CloudID string
}

// AddMediaOp is a transaction-scoped handle for inserting or updating
// media rows across one or more provider pages. Callers must call
// SetSuccess before Close to persist the writes.
type AddMediaOp struct {
	*WriteOp
	stmt      *sql.Stmt
	createdAt int64
}

// Execute upserts items for authority within the open transaction.
func (op *AddMediaOp) Execute(ctx context.Context, authority string, items []MediaItem) error {
	for i := range items {
		item := &items[i]

		visible := 0
		if item.IsVisible {
			visible = 1
		}

		_, err := op.stmt.ExecContext(ctx,
			authority, item.LocalID, item.CloudID, item.DateTakenMs,
			item.GenerationModified, visible, item.SizeBytes, item.MimeType, op.createdAt,
		)
		if err != nil {
			return fmt.Errorf("store: add media %s/%s: %w", item.LocalID, item.CloudID, err)
		}
	}

	return nil
}

// AlbumMediaItem is a single album-media row as reported by a provider
// album page.
type AlbumMediaItem struct {
	LocalID            string
	CloudID            string
	DateTakenMs        int64
	GenerationModified int64
}

// AddAlbumMediaOp is the album-media counterpart of AddMediaOp, scoped to
// one album ID for the lifetime of the handle.
type AddAlbumMediaOp struct {
	*WriteOp
	stmt      *sql.Stmt
	albumID   string
	createdAt int64
}

// Execute upserts items into albumID for authority within the open
// transaction.
func (op *AddAlbumMediaOp) Execute(ctx context.Context, authority string, items []AlbumMediaItem) error {
	for i := range items {
		item := &items[i]

		_, err := op.stmt.ExecContext(ctx,
			authority, op.albumID, item.LocalID, item.CloudID,
			item.DateTakenMs, item.GenerationModified, op.createdAt,
		)
		if err != nil {
			return fmt.Errorf("store: add album media %s/%s: %w", item.LocalID, item.CloudID, err)
		}
	}

	return nil
}

// RemoveMediaOp deletes media rows reported as deleted by a provider
// page.
type RemoveMediaOp struct {
	*WriteOp
	stmt *sql.Stmt
}

// Execute deletes rows matching any of ids for authority.
func (op *RemoveMediaOp) Execute(ctx context.Context, authority string, ids []MediaID) error {
	for _, id := range ids {
		_, err := op.stmt.ExecContext(ctx, authority, id.LocalID, id.LocalID, id.CloudID, id.CloudID)
		if err != nil {
			return fmt.Errorf("store: remove media %s/%s: %w", id.LocalID, id.CloudID, err)
		}
	}

	return nil
}

// PickerDbFacade is the transactional write surface over the media and
// album_media tables. Every mutation goes through a WriteOp so a failed
// mid-sync write rolls back instead of leaving a partially-applied page.
type PickerDbFacade interface {
	BeginAddMediaOperation(ctx context.Context, createdAt int64) (*AddMediaOp, error)
	BeginAddAlbumMediaOperation(ctx context.Context, albumID string, createdAt int64) (*AddAlbumMediaOp, error)
	BeginRemoveMediaOperation(ctx context.Context) (*RemoveMediaOp, error)
	BeginResetMediaOperation(ctx context.Context, authority string) (*WriteOp, error)
	BeginResetAlbumMediaOperation(ctx context.Context, authority, albumID string) (*WriteOp, error)
	BeginResetAllAlbumMediaOperation(ctx context.Context, authority string) (*WriteOp, error)

	SetCloudAuthority(authority string)
	CloudAuthority() string
}

var _ PickerDbFacade = (*DB)(nil)

// BeginAddMediaOperation starts a transaction-scoped media insert/update.
func (d *DB) BeginAddMediaOperation(ctx context.Context, createdAt int64) (*AddMediaOp, error) {
	op, err := beginWriteOp(ctx, d.conn)
	if err != nil {
		return nil, err
	}

	return &AddMediaOp{WriteOp: op, stmt: op.tx.StmtContext(ctx, d.media.insertMedia), createdAt: createdAt}, nil
}

// BeginAddAlbumMediaOperation starts a transaction-scoped album-media
// insert/update, scoped to albumID.
func (d *DB) BeginAddAlbumMediaOperation(ctx context.Context, albumID string, createdAt int64) (*AddAlbumMediaOp, error) {
	op, err := beginWriteOp(ctx, d.conn)
	if err != nil {
		return nil, err
	}

	return &AddAlbumMediaOp{
		WriteOp:   op,
		stmt:      op.tx.StmtContext(ctx, d.media.insertAlbumMedia),
		albumID:   albumID,
		createdAt: createdAt,
	}, nil
}

// BeginRemoveMediaOperation starts a transaction-scoped media deletion.
func (d *DB) BeginRemoveMediaOperation(ctx context.Context) (*RemoveMediaOp, error) {
	op, err := beginWriteOp(ctx, d.conn)
	if err != nil {
		return nil, err
	}

	return &RemoveMediaOp{WriteOp: op, stmt: op.tx.StmtContext(ctx, d.media.deleteMediaByID)}, nil
}

// BeginResetMediaOperation starts a transaction that, once executed and
// marked successful, deletes every media row for authority. Used for Reset
// and Full verdicts before the provider is re-queried from scratch.
func (d *DB) BeginResetMediaOperation(ctx context.Context, authority string) (*WriteOp, error) {
	op, err := beginWriteOp(ctx, d.conn)
	if err != nil {
		return nil, err
	}

	if _, err := op.tx.StmtContext(ctx, d.media.deleteAllMedia).ExecContext(ctx, authority); err != nil {
		op.tx.Rollback()
		return nil, fmt.Errorf("store: reset media %s: %w", authority, err)
	}

	return op, nil
}

// BeginResetAlbumMediaOperation starts a transaction that, once marked
// successful, deletes every album_media row for authority/albumID.
func (d *DB) BeginResetAlbumMediaOperation(ctx context.Context, authority, albumID string) (*WriteOp, error) {
	op, err := beginWriteOp(ctx, d.conn)
	if err != nil {
		return nil, err
	}

	if _, err := op.tx.StmtContext(ctx, d.media.deleteAllAlbum).ExecContext(ctx, authority, albumID); err != nil {
		op.tx.Rollback()
		return nil, fmt.Errorf("store: reset album media %s/%s: %w", authority, albumID, err)
	}

	return op, nil
}

// BeginResetAllAlbumMediaOperation starts a transaction that, once marked
// successful, deletes every album_media row for authority across all
// albums. Used by the cloud sync cycle, which resets album-media for both
// providers wholesale rather than one album at a time.
func (d *DB) BeginResetAllAlbumMediaOperation(ctx context.Context, authority string) (*WriteOp, error) {
	op, err := beginWriteOp(ctx, d.conn)
	if err != nil {
		return nil, err
	}

	if _, err := op.tx.StmtContext(ctx, d.media.deleteAllAlbumsForAuthority).ExecContext(ctx, authority); err != nil {
		op.tx.Rollback()
		return nil, fmt.Errorf("store: reset all album media %s: %w", authority, err)
	}

	return op, nil
}
