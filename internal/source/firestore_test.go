package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStopped(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"cancelled context", cancelled, errors.New("boom"), true},
		{"iterator done", live, iterator.Done, true},
		{"grpc canceled", live, status.Error(codes.Canceled, "stop"), true},
		{"wrapped context canceled", live, fmt.Errorf("next: %w", context.Canceled), true},
		{"unavailable", live, status.Error(codes.Unavailable, "down"), false},
		{"permission denied", live, status.Error(codes.PermissionDenied, "nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stopped(tt.ctx, tt.err))
		})
	}
}

// TestFirestoreSource_Emulator runs against a local Firestore emulator when
// FIRESTORE_EMULATOR_HOST is set.
func TestFirestoreSource_Emulator(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	src, err := NewFirestoreSource(ctx, "bddash-test", host, nil)
	require.NoError(t, err)
	defer src.Close()

	collection := fmt.Sprintf("projects-%d", time.Now().UnixNano())
	_, err = src.client.Collection(collection).Doc("checkout").Set(ctx, map[string]any{
		"name":      "Checkout",
		"createdAt": time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	var got snapshots
	sub := src.Subscribe(collection, got.onSnapshot, got.onError)
	defer sub.Unsubscribe()

	require.Eventually(t, func() bool { return len(got.latest()) == 1 }, 10*time.Second, 50*time.Millisecond)
	doc := got.latest()[0]
	assert.Equal(t, "checkout", doc.ID)
	_, isTime := doc.Data["createdAt"].(time.Time)
	assert.True(t, isTime)
}
