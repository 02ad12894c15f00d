// Package source abstracts the live document store the dashboard reads from.
//
// A Source delivers full snapshots of a collection whenever it changes and
// reports the health of its channel to the backend. Callbacks are never
// invoked synchronously from Subscribe or ConnectionState, snapshots for one
// subscription arrive in emission order, and Unsubscribe does not wait for
// a callback that is already running.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
)

// Document is one document of a collection snapshot.
// Data holds backend-native values and must be treated as read-only.
type Document struct {
	ID   string
	Data map[string]any
}

// SnapshotFunc receives the complete current contents of a collection.
type SnapshotFunc func(docs []Document)

// ErrorFunc receives a subscription failure. No further snapshots follow.
type ErrorFunc func(err error)

// Subscription is a cancellable listener registration.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// Source is a live, read-only document store.
type Source interface {
	// Subscribe starts watching collection.
	Subscribe(collection string, onSnapshot SnapshotFunc, onError ErrorFunc) Subscription

	// ConnectionState reports channel health changes. The current state is
	// delivered shortly after registration.
	ConnectionState(onChange func(connected bool)) Subscription

	// Close stops all subscriptions and releases backend resources.
	Close() error
}

// Options selects and configures a Source driver.
type Options struct {
	Driver string

	// Path of the fixture file for the "file" driver.
	Path string

	// Firestore settings.
	ProjectID       string
	CredentialsFile string
	EmulatorHost    string
}

// SupportedDrivers lists all available source drivers.
var SupportedDrivers = []string{"firestore", "file"}

// New creates a Source for the configured driver.
func New(ctx context.Context, opts Options, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "firestore":
		var clientOpts []option.ClientOption
		if opts.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
		}
		src, err := NewFirestoreSource(ctx, opts.ProjectID, opts.EmulatorHost, logger, clientOpts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "file":
		src, err := NewFileSource(opts.Path, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source driver: %s (supported: %v)", opts.Driver, SupportedDrivers)
	}
}
