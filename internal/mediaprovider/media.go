package mediaprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// PageSize is the fixed page size the client requests on every paged
// query, mirroring the Android implementation's fixed provider page size.
const PageSize = 1000

// CollectionInfo identifies the provider's current media collection and
// the generation watermark it is at. A change in CollectionID invalidates
// any cached sync cursor; the sync engine stores LastSyncGeneration as the
// cursor's generation once a sync completes, and the next incremental query
// starts from it.
type CollectionInfo struct {
	ID                 string `json:"collection_id"`
	LastSyncGeneration int64  `json:"last_sync_generation"`
}

// MediaItem is a single media asset as reported by the provider.
type MediaItem struct {
	LocalID            string `json:"local_id"`
	CloudID            string `json:"cloud_id"`
	DateTakenMs        int64  `json:"date_taken_ms"`
	GenerationModified int64  `json:"generation_modified"`
	IsVisible          bool   `json:"is_visible"`
	SizeBytes          int64  `json:"size_bytes"`
	MimeType           string `json:"mime_type"`
}

// DeletedMediaItem identifies a media asset the provider reports as
// removed since the last sync generation.
type DeletedMediaItem struct {
	LocalID     string `json:"local_id"`
	CloudID     string `json:"cloud_id"`
	DateTakenMs int64  `json:"date_taken_ms"`
}

// AlbumItem describes a single cloud album.
type AlbumItem struct {
	ID          string `json:"album_id"`
	DisplayName string `json:"display_name"`
	DateTakenMs int64  `json:"date_taken_ms"`
	MediaCount  int64  `json:"media_count"`
}

// MediaPage is one page of a media or album-media query. NextPageToken is
// empty once the provider has no further pages. HonoredArgs lists the
// query arguments the provider actually applied — the sync engine checks
// that it includes the arguments the engine requires (page_size when paging
// is enforced, generation on an incremental query) before trusting the page.
type MediaPage struct {
	Items         []MediaItem `json:"items"`
	NextPageToken string      `json:"next_page_token"`
	HonoredArgs   []string    `json:"honored_args"`
	CollectionID  string      `json:"collection_id"`
}

// DeletedMediaPage is one page of a deleted-media query.
type DeletedMediaPage struct {
	Items         []DeletedMediaItem `json:"items"`
	NextPageToken string             `json:"next_page_token"`
	HonoredArgs   []string           `json:"honored_args"`
	CollectionID  string             `json:"collection_id"`
}

// AlbumPage is one page of an album-listing query.
type AlbumPage struct {
	Items         []AlbumItem `json:"items"`
	NextPageToken string      `json:"next_page_token"`
}

// CollectionInfo fetches the provider's current collection identity and
// generation watermark. Called at the start of every sync to detect a
// collection change that forces a full resync.
func (c *Client) CollectionInfo(ctx context.Context) (CollectionInfo, error) {
	resp, err := c.Do(ctx, "GET", "/collection/info", nil)
	if err != nil {
		return CollectionInfo{}, err
	}
	defer resp.Body.Close()

	var info CollectionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return CollectionInfo{}, fmt.Errorf("mediaprovider: decoding collection info: %w", err)
	}

	return info, nil
}

// QueryMedia fetches one page of added/updated media at or after
// generation. Pass generation 0 and an empty pageToken for a full
// enumeration.
func (c *Client) QueryMedia(ctx context.Context, generation int64, pageToken string) (MediaPage, error) {
	query := map[string]string{
		"generation": strconv.FormatInt(generation, 10),
		"page_size":  strconv.Itoa(PageSize),
	}
	if pageToken != "" {
		query["page_token"] = pageToken
	}

	resp, err := c.Do(ctx, "GET", "/media", query)
	if err != nil {
		return MediaPage{}, err
	}
	defer resp.Body.Close()

	var page MediaPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return MediaPage{}, fmt.Errorf("mediaprovider: decoding media page: %w", err)
	}

	return page, nil
}

// QueryDeletedMedia fetches one page of media deleted at or after
// generation.
func (c *Client) QueryDeletedMedia(ctx context.Context, generation int64, pageToken string) (DeletedMediaPage, error) {
	query := map[string]string{
		"generation": strconv.FormatInt(generation, 10),
		"page_size":  strconv.Itoa(PageSize),
	}
	if pageToken != "" {
		query["page_token"] = pageToken
	}

	resp, err := c.Do(ctx, "GET", "/media/deleted", query)
	if err != nil {
		return DeletedMediaPage{}, err
	}
	defer resp.Body.Close()

	var page DeletedMediaPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return DeletedMediaPage{}, fmt.Errorf("mediaprovider: decoding deleted media page: %w", err)
	}

	return page, nil
}

// QueryAlbums fetches one page of the provider's albums.
func (c *Client) QueryAlbums(ctx context.Context, pageToken string) (AlbumPage, error) {
	query := map[string]string{}
	if pageToken != "" {
		query["page_token"] = pageToken
	}

	resp, err := c.Do(ctx, "GET", "/albums", query)
	if err != nil {
		return AlbumPage{}, err
	}
	defer resp.Body.Close()

	var page AlbumPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return AlbumPage{}, fmt.Errorf("mediaprovider: decoding album page: %w", err)
	}

	return page, nil
}

// QueryAlbumMedia fetches one page of media within albumID. Album media
// sync is always a full enumeration, so there is no generation parameter.
func (c *Client) QueryAlbumMedia(ctx context.Context, albumID, pageToken string) (MediaPage, error) {
	query := map[string]string{
		"album_id":  albumID,
		"page_size": strconv.Itoa(PageSize),
	}
	if pageToken != "" {
		query["page_token"] = pageToken
	}

	resp, err := c.Do(ctx, "GET", "/albums/media", query)
	if err != nil {
		return MediaPage{}, err
	}
	defer resp.Body.Close()

	var page MediaPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return MediaPage{}, fmt.Errorf("mediaprovider: decoding album media page: %w", err)
	}

	return page, nil
}
