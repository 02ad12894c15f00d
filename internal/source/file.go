package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// FileSource serves collections from a JSON fixture file and re-publishes
// them whenever the file changes on disk.
//
// The file holds one entry per collection. A collection is either an array
// of documents carrying an "id" field, or an object keyed by document ID:
//
//	{"projects": [{"id": "checkout", "name": "Checkout"}],
//	 "runs": {"r1": {"projectId": "checkout", "timestamp": {"_seconds": 1700000000, "_nanoseconds": 0}}}}
//
// Timestamps in Firebase export form ({"_seconds", "_nanoseconds"}) are
// decoded to *timestamppb.Timestamp.
type FileSource struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	conn    *connState

	mu   sync.Mutex
	subs map[*fileSubscription]struct{}

	reload    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFileSource watches the fixture at path. The file does not need to
// exist yet; subscribers get an error until it does.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("source path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are picked up.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	s := &FileSource{
		path:    abs,
		logger:  logger.With("component", "file-source", "path", abs),
		watcher: watcher,
		conn:    newConnState(true),
		subs:    make(map[*fileSubscription]struct{}),
		reload:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.loop()

	return s, nil
}

// Subscribe registers a listener for collection. The current contents are
// published asynchronously.
func (s *FileSource) Subscribe(collection string, onSnapshot SnapshotFunc, onError ErrorFunc) Subscription {
	sub := &fileSubscription{
		src:        s,
		collection: collection,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	sub.active.Store(true)

	select {
	case <-s.done:
		s.logger.Warn("subscribe on closed source", "collection", collection)
		sub.active.Store(false)
		return sub
	default:
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	s.requestReload()
	return sub
}

// ConnectionState reports whether the last read of the fixture succeeded.
func (s *FileSource) ConnectionState(onChange func(connected bool)) Subscription {
	return s.conn.watch(onChange)
}

// Close stops the watch loop and all subscriptions.
func (s *FileSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()

		s.mu.Lock()
		for sub := range s.subs {
			sub.active.Store(false)
		}
		s.subs = make(map[*fileSubscription]struct{})
		s.mu.Unlock()

		s.conn.closeAll()
	})
	return err
}

func (s *FileSource) requestReload() {
	select {
	case s.reload <- struct{}{}:
	default:
		// a reload is already pending and will include this subscriber
	}
}

// loop serializes every publication, which keeps per-subscription order.
func (s *FileSource) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-s.reload:
			s.publish()
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				s.logger.Debug("fixture changed", "op", event.Op.String())
				s.publish()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (s *FileSource) publish() {
	collections, err := s.load()

	s.mu.Lock()
	subs := make([]*fileSubscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("fixture unreadable", "error", err)
		s.conn.set(false)
		for _, sub := range subs {
			if sub.active.Load() && sub.onError != nil {
				sub.onError(err)
			}
		}
		return
	}

	s.conn.set(true)
	for _, sub := range subs {
		if sub.active.Load() && sub.onSnapshot != nil {
			sub.onSnapshot(collections[sub.collection])
		}
	}
	s.logger.Debug("snapshots published", "subscribers", len(subs))
}

func (s *FileSource) load() (map[string][]Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	collections := make(map[string][]Document, len(raw))
	for name, body := range raw {
		docs, err := decodeCollection(body)
		if err != nil {
			return nil, fmt.Errorf("parse collection %s: %w", name, err)
		}
		collections[name] = docs
	}
	return collections, nil
}

// decodeCollection accepts either an array of documents or an object keyed by ID.
func decodeCollection(body json.RawMessage) ([]Document, error) {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil {
		docs := make([]Document, 0, len(list))
		for i, data := range list {
			id, _ := data["id"].(string)
			if id == "" {
				return nil, fmt.Errorf("document at index %d has no id", i)
			}
			doc, err := decodeDocument(id, data)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}

	var keyed map[string]map[string]any
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, fmt.Errorf("expected array or object of documents: %w", err)
	}
	ids := make([]string, 0, len(keyed))
	for id := range keyed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]Document, 0, len(keyed))
	for _, id := range ids {
		data := keyed[id]
		if data == nil {
			data = map[string]any{}
		}
		doc, err := decodeDocument(id, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// decodeDocument converts exported timestamps inside a document body. A body
// that is itself a timestamp is not a document.
func decodeDocument(id string, data map[string]any) (Document, error) {
	fields, ok := decodeTimestamps(data).(map[string]any)
	if !ok {
		return Document{}, fmt.Errorf("document %s is not an object", id)
	}
	return Document{ID: id, Data: fields}, nil
}

// decodeTimestamps turns {"_seconds": N, "_nanoseconds": M} objects into
// protobuf timestamps, recursively.
func decodeTimestamps(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if ts, ok := asExportedTimestamp(t); ok {
			return ts
		}
		for k, e := range t {
			t[k] = decodeTimestamps(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = decodeTimestamps(e)
		}
		return t
	default:
		return v
	}
}

func asExportedTimestamp(m map[string]any) (*timestamppb.Timestamp, bool) {
	if len(m) != 2 {
		return nil, false
	}
	sec, ok := m["_seconds"].(float64)
	if !ok {
		return nil, false
	}
	nanos, ok := m["_nanoseconds"].(float64)
	if !ok {
		return nil, false
	}
	return &timestamppb.Timestamp{Seconds: int64(sec), Nanos: int32(nanos)}, true
}

type fileSubscription struct {
	src        *FileSource
	collection string
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	active     atomic.Bool
	once       sync.Once
}

func (s *fileSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.active.Store(false)
		s.src.mu.Lock()
		delete(s.src.subs, s)
		s.src.mu.Unlock()
	})
}
