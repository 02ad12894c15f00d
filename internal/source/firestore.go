package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreSource watches Cloud Firestore collections through realtime
// query snapshots. Timestamps arrive as time.Time values.
type FirestoreSource struct {
	client *firestore.Client
	logger *slog.Logger
	conn   *connState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewFirestoreSource connects to the Firestore database of projectID.
// A non-empty emulatorHost routes the client to a local emulator.
func NewFirestoreSource(ctx context.Context, projectID, emulatorHost string, logger *slog.Logger, opts ...option.ClientOption) (*FirestoreSource, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project_id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if emulatorHost != "" {
		// The client library reads the emulator address from the environment.
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", emulatorHost); err != nil {
			return nil, fmt.Errorf("set emulator host: %w", err)
		}
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	srcCtx, cancel := context.WithCancel(context.Background())
	return &FirestoreSource{
		client: client,
		logger: logger.With("component", "firestore-source", "project_id", projectID),
		conn:   newConnState(true),
		ctx:    srcCtx,
		cancel: cancel,
	}, nil
}

// Subscribe starts a realtime listener on collection.
func (s *FirestoreSource) Subscribe(collection string, onSnapshot SnapshotFunc, onError ErrorFunc) Subscription {
	ctx, cancel := context.WithCancel(s.ctx)
	sub := &firestoreSubscription{cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		it := s.client.Collection(collection).Snapshots(ctx)
		defer it.Stop()
		s.watch(ctx, collection, it, onSnapshot, onError)
	}()

	return sub
}

func (s *FirestoreSource) watch(ctx context.Context, collection string, it *firestore.QuerySnapshotIterator, onSnapshot SnapshotFunc, onError ErrorFunc) {
	logger := s.logger.With("collection", collection)

	for {
		snap, err := it.Next()
		if err == nil {
			var docs []*firestore.DocumentSnapshot
			docs, err = snap.Documents.GetAll()
			if err == nil {
				out := make([]Document, 0, len(docs))
				for _, d := range docs {
					out = append(out, Document{ID: d.Ref.ID, Data: d.Data()})
				}
				s.conn.set(true)
				if ctx.Err() != nil {
					return
				}
				logger.Debug("snapshot received", "documents", len(out))
				onSnapshot(out)
				continue
			}
		}

		if stopped(ctx, err) {
			logger.Debug("listener stopped")
			return
		}

		logger.Error("listener failed", "error", err)
		s.conn.set(false)
		if onError != nil {
			onError(fmt.Errorf("watch %s: %w", collection, err))
		}
		return
	}
}

// stopped reports whether err is the result of our own cancellation.
func stopped(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, iterator.Done) || errors.Is(err, context.Canceled) {
		return true
	}
	return status.Code(err) == codes.Canceled
}

// ConnectionState reports listener health: connected after a snapshot,
// disconnected after a stream failure.
func (s *FirestoreSource) ConnectionState(onChange func(connected bool)) Subscription {
	return s.conn.watch(onChange)
}

// Close stops every listener and closes the client.
func (s *FirestoreSource) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.conn.closeAll()
		err = s.client.Close()
	})
	return err
}

type firestoreSubscription struct {
	cancel context.CancelFunc
}

// Unsubscribe cancels the listener context; the watch goroutine exits on
// its next iteration.
func (s *firestoreSubscription) Unsubscribe() {
	s.cancel()
}
