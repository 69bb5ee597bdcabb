package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// cloudProviderAuthorityKey is the single user_prefs key that records the
// selected cloud provider authority. Mirrors the Android implementation's
// "-" sentinel for "explicitly set to none" versus an absent row for
// "never configured".
const cloudProviderAuthorityKey = "cloud_provider_authority"

// unsetSentinel is the stored value meaning the user explicitly turned
// cloud media off, as distinct from a row that was never written.
const unsetSentinel = "-"

// Sync preference key names, scoped per (authority, scope) pair where
// scope is either "media" or "album:<albumId>".
const (
	prefKeyCollectionID  = "collection_id"
	prefKeyGeneration    = "generation"
	prefKeyAddMediaToken = "resume_add_media"
	prefKeyAddAlbumToken = "resume_add_album"
	prefKeyRemoveToken   = "resume_remove_media"
)

type prefsStatements struct {
	getUserPref    *sql.Stmt
	setUserPref    *sql.Stmt
	deleteUserPref *sql.Stmt
	getSyncPref    *sql.Stmt
	setSyncPref    *sql.Stmt
	deleteScope    *sql.Stmt
}

func (d *DB) preparePrefsStmts(ctx context.Context) error {
	return prepareAll(ctx, d.conn, []stmtDef{
		{&d.prefs.getUserPref, `SELECT value FROM user_prefs WHERE key = ?`, "getUserPref"},
		{&d.prefs.setUserPref, `INSERT INTO user_prefs (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, "setUserPref"},
		{&d.prefs.deleteUserPref, `DELETE FROM user_prefs WHERE key = ?`, "deleteUserPref"},
		{&d.prefs.getSyncPref, `SELECT value FROM sync_prefs
			WHERE authority = ? AND scope = ? AND key = ?`, "getSyncPref"},
		{&d.prefs.setSyncPref, `INSERT INTO sync_prefs (authority, scope, key, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(authority, scope, key) DO UPDATE SET value = excluded.value`, "setSyncPref"},
		{&d.prefs.deleteScope, `DELETE FROM sync_prefs WHERE authority = ? AND scope = ?`, "deleteScope"},
	})
}

func (d *DB) closePrefsStmts() error {
	stmts := []*sql.Stmt{
		d.prefs.getUserPref, d.prefs.setUserPref, d.prefs.deleteUserPref,
		d.prefs.getSyncPref, d.prefs.setSyncPref, d.prefs.deleteScope,
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

// ResumeTokens holds the three provider-query page tokens the sync engine
// persists across incremental runs, one per query kind.
type ResumeTokens struct {
	AddMedia    string
	AddAlbum    string
	RemoveMedia string
}

// SyncCursor is the persisted state an incremental sync resumes from: the
// provider collection it was captured against, the generation watermark,
// and the resume tokens for each query kind.
type SyncCursor struct {
	CollectionID string
	Generation   int64
	Tokens       ResumeTokens
}

// albumScope builds the sync_prefs scope string for an album's cursor.
// Whole-media sync uses the fixed scope "media".
func albumScope(albumID string) string {
	return "album:" + albumID
}

const mediaScope = "media"

// PreferencesStore is the persistence surface for the cloud provider
// selection and per-provider sync cursors. The picker controller is the
// only caller; it interprets the tri-state authority semantics.
type PreferencesStore interface {
	CloudProviderAuthority(ctx context.Context) (value string, everSet bool, err error)
	SetCloudProviderAuthority(ctx context.Context, authority string) error
	SetCloudProviderUnset(ctx context.Context) error

	MediaSyncCursor(ctx context.Context, authority string) (SyncCursor, bool, error)
	SetMediaSyncCursor(ctx context.Context, authority string, cursor SyncCursor) error
	ClearMediaSyncCursor(ctx context.Context, authority string) error

	AlbumSyncCursor(ctx context.Context, authority, albumID string) (SyncCursor, bool, error)
	SetAlbumSyncCursor(ctx context.Context, authority, albumID string, cursor SyncCursor) error
	ClearAlbumSyncCursor(ctx context.Context, authority, albumID string) error

	SetMediaAddResumeToken(ctx context.Context, authority, token string) error
	SetMediaRemoveResumeToken(ctx context.Context, authority, token string) error
	SetAlbumAddResumeToken(ctx context.Context, authority, albumID, token string) error
}

// compile-time interface check.
var _ PreferencesStore = (*DB)(nil)

// CloudProviderAuthority returns the stored authority and whether a row
// has ever been written. everSet=false means "never configured" (the
// NotSet state); value==unsetSentinel means explicitly disabled.
func (d *DB) CloudProviderAuthority(ctx context.Context) (string, bool, error) {
	var value string

	err := d.prefs.getUserPref.QueryRowContext(ctx, cloudProviderAuthorityKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("store: get cloud provider authority: %w", err)
	}

	return value, true, nil
}

// SetCloudProviderAuthority persists authority as the selected cloud
// provider.
func (d *DB) SetCloudProviderAuthority(ctx context.Context, authority string) error {
	if _, err := d.prefs.setUserPref.ExecContext(ctx, cloudProviderAuthorityKey, authority); err != nil {
		return fmt.Errorf("store: set cloud provider authority: %w", err)
	}

	return nil
}

// SetCloudProviderUnset records that the user explicitly cleared the
// cloud provider, distinct from having never set one.
func (d *DB) SetCloudProviderUnset(ctx context.Context) error {
	return d.SetCloudProviderAuthority(ctx, unsetSentinel)
}

// MediaSyncCursor loads the whole-media sync cursor for authority. The
// second return is false if no cursor has ever been persisted.
func (d *DB) MediaSyncCursor(ctx context.Context, authority string) (SyncCursor, bool, error) {
	return d.syncCursor(ctx, authority, mediaScope)
}

// SetMediaSyncCursor persists the whole-media sync cursor for authority.
func (d *DB) SetMediaSyncCursor(ctx context.Context, authority string, cursor SyncCursor) error {
	return d.setSyncCursor(ctx, authority, mediaScope, cursor)
}

// ClearMediaSyncCursor deletes the whole-media cursor for authority, used
// before a full or reset sync so stale resume tokens cannot leak in.
func (d *DB) ClearMediaSyncCursor(ctx context.Context, authority string) error {
	return d.clearScope(ctx, authority, mediaScope)
}

// AlbumSyncCursor loads the per-album sync cursor for authority/albumID.
func (d *DB) AlbumSyncCursor(ctx context.Context, authority, albumID string) (SyncCursor, bool, error) {
	return d.syncCursor(ctx, authority, albumScope(albumID))
}

// SetAlbumSyncCursor persists the per-album sync cursor.
func (d *DB) SetAlbumSyncCursor(ctx context.Context, authority, albumID string, cursor SyncCursor) error {
	return d.setSyncCursor(ctx, authority, albumScope(albumID), cursor)
}

// ClearAlbumSyncCursor deletes the per-album cursor, always a full reset
// since album media sync has no incremental mode.
func (d *DB) ClearAlbumSyncCursor(ctx context.Context, authority, albumID string) error {
	return d.clearScope(ctx, authority, albumScope(albumID))
}

// SetMediaAddResumeToken persists only the add_media resume token,
// leaving the collection id and generation watermark untouched. Called
// after each committed page so a crash mid-run resumes from that page
// instead of redoing the whole incremental sync.
func (d *DB) SetMediaAddResumeToken(ctx context.Context, authority, token string) error {
	if _, err := d.prefs.setSyncPref.ExecContext(ctx, authority, mediaScope, prefKeyAddMediaToken, token); err != nil {
		return fmt.Errorf("store: set add media resume token: %w", err)
	}

	return nil
}

// SetMediaRemoveResumeToken persists only the remove_media resume token.
func (d *DB) SetMediaRemoveResumeToken(ctx context.Context, authority, token string) error {
	if _, err := d.prefs.setSyncPref.ExecContext(ctx, authority, mediaScope, prefKeyRemoveToken, token); err != nil {
		return fmt.Errorf("store: set remove media resume token: %w", err)
	}

	return nil
}

// SetAlbumAddResumeToken persists only the add-media resume token for a
// single album's scope, independent of the album's collection id/generation
// cursor rows.
func (d *DB) SetAlbumAddResumeToken(ctx context.Context, authority, albumID, token string) error {
	scope := albumScope(albumID)
	if _, err := d.prefs.setSyncPref.ExecContext(ctx, authority, scope, prefKeyAddAlbumToken, token); err != nil {
		return fmt.Errorf("store: set album resume token: %w", err)
	}

	return nil
}

func (d *DB) syncCursor(ctx context.Context, authority, scope string) (SyncCursor, bool, error) {
	collectionID, ok, err := d.getSyncPrefString(ctx, authority, scope, prefKeyCollectionID)
	if err != nil || !ok {
		return SyncCursor{}, false, err
	}

	generation, _, err := d.getSyncPrefInt(ctx, authority, scope, prefKeyGeneration)
	if err != nil {
		return SyncCursor{}, false, err
	}

	addMedia, _, err := d.getSyncPrefString(ctx, authority, scope, prefKeyAddMediaToken)
	if err != nil {
		return SyncCursor{}, false, err
	}

	addAlbum, _, err := d.getSyncPrefString(ctx, authority, scope, prefKeyAddAlbumToken)
	if err != nil {
		return SyncCursor{}, false, err
	}

	removeMedia, _, err := d.getSyncPrefString(ctx, authority, scope, prefKeyRemoveToken)
	if err != nil {
		return SyncCursor{}, false, err
	}

	return SyncCursor{
		CollectionID: collectionID,
		Generation:   generation,
		Tokens: ResumeTokens{
			AddMedia:    addMedia,
			AddAlbum:    addAlbum,
			RemoveMedia: removeMedia,
		},
	}, true, nil
}

func (d *DB) setSyncCursor(ctx context.Context, authority, scope string, cursor SyncCursor) error {
	writes := []struct {
		key, value string
	}{
		{prefKeyCollectionID, cursor.CollectionID},
		{prefKeyGeneration, fmt.Sprintf("%d", cursor.Generation)},
		{prefKeyAddMediaToken, cursor.Tokens.AddMedia},
		{prefKeyAddAlbumToken, cursor.Tokens.AddAlbum},
		{prefKeyRemoveToken, cursor.Tokens.RemoveMedia},
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin sync cursor write %s/%s: %w", authority, scope, err)
	}

	stmt := tx.StmtContext(ctx, d.prefs.setSyncPref)

	for _, w := range writes {
		if _, err := stmt.ExecContext(ctx, authority, scope, w.key, w.value); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("store: set sync pref %s/%s/%s: %w", authority, scope, w.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit sync cursor write %s/%s: %w", authority, scope, err)
	}

	return nil
}

func (d *DB) clearScope(ctx context.Context, authority, scope string) error {
	if _, err := d.prefs.deleteScope.ExecContext(ctx, authority, scope); err != nil {
		return fmt.Errorf("store: clear sync scope %s/%s: %w", authority, scope, err)
	}

	return nil
}

func (d *DB) getSyncPrefString(ctx context.Context, authority, scope, key string) (string, bool, error) {
	var value string

	err := d.prefs.getSyncPref.QueryRowContext(ctx, authority, scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("store: get sync pref %s/%s/%s: %w", authority, scope, key, err)
	}

	return value, true, nil
}

func (d *DB) getSyncPrefInt(ctx context.Context, authority, scope, key string) (int64, bool, error) {
	raw, ok, err := d.getSyncPrefString(ctx, authority, scope, key)
	if err != nil || !ok || raw == "" {
		return 0, ok, err
	}

	var value int64
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0, false, fmt.Errorf("store: parse sync pref %s/%s/%s: %w", authority, scope, key, err)
	}

	return value, true, nil
}
