package picker

import (
	"context"
	"fmt"

	"github.com/haavardk/pickersync/internal/mediaprovider"
)

// fakeProvider is an in-memory stand-in for mediaprovider.Client, letting
// tests script exact page sequences and error injection without a real
// HTTP server.
type fakeProvider struct {
	authority string

	info    mediaprovider.CollectionInfo
	infoErr error

	mediaPages   []mediaprovider.MediaPage
	mediaErr     error
	mediaCalls   []string // page tokens requested, in order
	deletedPages []mediaprovider.DeletedMediaPage
	deletedErr   error
	albumPages   map[string][]mediaprovider.MediaPage
}

func newFakeProvider(authority string) *fakeProvider {
	return &fakeProvider{authority: authority, albumPages: map[string][]mediaprovider.MediaPage{}}
}

func (f *fakeProvider) Authority() string { return f.authority }

func (f *fakeProvider) CollectionInfo(context.Context) (mediaprovider.CollectionInfo, error) {
	if f.infoErr != nil {
		return mediaprovider.CollectionInfo{}, f.infoErr
	}

	return f.info, nil
}

func (f *fakeProvider) QueryMedia(_ context.Context, _ int64, pageToken string) (mediaprovider.MediaPage, error) {
	f.mediaCalls = append(f.mediaCalls, pageToken)

	if f.mediaErr != nil {
		return mediaprovider.MediaPage{}, f.mediaErr
	}

	if len(f.mediaPages) == 0 {
		return mediaprovider.MediaPage{}, fmt.Errorf("fakeProvider: no more media pages scripted")
	}

	page := f.mediaPages[0]
	f.mediaPages = f.mediaPages[1:]

	return page, nil
}

func (f *fakeProvider) QueryDeletedMedia(_ context.Context, _ int64, _ string) (mediaprovider.DeletedMediaPage, error) {
	if f.deletedErr != nil {
		return mediaprovider.DeletedMediaPage{}, f.deletedErr
	}

	if len(f.deletedPages) == 0 {
		return mediaprovider.DeletedMediaPage{}, nil
	}

	page := f.deletedPages[0]
	f.deletedPages = f.deletedPages[1:]

	return page, nil
}

func (f *fakeProvider) QueryAlbums(context.Context, string) (mediaprovider.AlbumPage, error) {
	return mediaprovider.AlbumPage{}, nil
}

func (f *fakeProvider) QueryAlbumMedia(_ context.Context, albumID, _ string) (mediaprovider.MediaPage, error) {
	pages := f.albumPages[albumID]
	if len(pages) == 0 {
		return mediaprovider.MediaPage{}, nil
	}

	page := pages[0]
	f.albumPages[albumID] = pages[1:]

	return page, nil
}

var _ Provider = (*fakeProvider)(nil)
