package picker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// notificationBaseURI is the fixed internal namespace every published URI
// is rooted under.
const notificationBaseURI = "content://picker-sync/internal"

// refreshPickerUIURI is notified whenever the selected cloud provider
// changes, regardless of which media rows moved.
const refreshPickerUIURI = notificationBaseURI + "/refresh-picker-ui"

// URISink receives a published URI. A real host process wires this to its
// own UI-refresh mechanism (a websocket push, a D-Bus signal, an Android
// ContentObserver) via Notifier.AddSink, alongside the channel-based
// in-process observers Subscribe returns.
type URISink interface {
	NotifyURI(ctx context.Context, uri string)
}

// Notifier is a small in-process pub/sub standing in for the platform
// content-observer mechanism: registered observers receive every URI
// published, each over its own buffered channel so one slow observer
// cannot block the sync engine.
type Notifier struct {
	logger *slog.Logger

	mu        sync.Mutex
	observers map[int]chan string
	nextID    int
	sinks     []URISink
}

// NewNotifier creates a Notifier that logs every publish at debug level.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger, observers: make(map[int]chan string)}
}

// AddSink registers an external URISink alongside the channel-based
// in-process observers — a host process wires its own UI-refresh
// mechanism here instead of polling Subscribe's channel.
func (n *Notifier) AddSink(sink URISink) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sinks = append(n.sinks, sink)
}

// Subscribe registers an observer and returns its channel plus an
// unsubscribe function. The channel has a small buffer; a full channel
// drops the oldest notification rather than blocking the publisher.
func (n *Notifier) Subscribe() (<-chan string, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	ch := make(chan string, 16)
	n.observers[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		if existing, ok := n.observers[id]; ok {
			delete(n.observers, id)
			close(existing)
		}
	}
}

// publish fans uri out to every registered observer without blocking.
func (n *Notifier) publish(uri string) {
	n.logger.Debug("picker: publish notification", slog.String("uri", uri))

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.observers {
		select {
		case ch <- uri:
		default:
			select {
			case <-ch:
			default:
			}

			select {
			case ch <- uri:
			default:
			}
		}
	}

	for _, sink := range n.sinks {
		sink.NotifyURI(context.Background(), uri)
	}
}

// NotifyMediaChanged publishes the add_media/remove_media change URI for a
// whole-media page commit, keyed by the page's date-taken timestamp.
func (n *Notifier) NotifyMediaChanged(dateTakenMs int64) {
	n.publish(fmt.Sprintf("%s/update/media/%d", notificationBaseURI, dateTakenMs))
}

// NotifyAlbumContentChanged publishes the album-scoped change URI for an
// add_album/remove_media-with-album page commit.
func (n *Notifier) NotifyAlbumContentChanged(albumID string, dateTakenMs int64) {
	n.publish(fmt.Sprintf("%s/update/album_content/%s/%d", notificationBaseURI, albumID, dateTakenMs))
}

// NotifyCloudProviderChanged publishes the single refresh-picker-ui URI,
// used whenever the active cloud provider authority changes.
func (n *Notifier) NotifyCloudProviderChanged() {
	n.publish(refreshPickerUIURI)
}
