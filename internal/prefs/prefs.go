// Package prefs provides durable key-value storage for user preferences
// such as the dashboard theme.
package prefs

// Store persists string values under string keys.
type Store interface {
	// Get returns the value stored under key. ok is false if the key is absent.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Close releases any resources held by the store.
	Close() error
}
