package livestore

// Banner is the connectivity message shown above every view.
type Banner int

const (
	BannerNone Banner = iota
	BannerOffline
	BannerReconnecting
)

// BannerFor applies the precedence rule: being offline always wins over a
// lost subscription channel.
func BannerFor(browserOnline, connected bool) Banner {
	if !browserOnline {
		return BannerOffline
	}
	if !connected {
		return BannerReconnecting
	}
	return BannerNone
}

func (b Banner) String() string {
	switch b {
	case BannerOffline:
		return "offline"
	case BannerReconnecting:
		return "reconnecting"
	default:
		return "none"
	}
}

// Message is the user-facing text, empty for BannerNone.
func (b Banner) Message() string {
	switch b {
	case BannerOffline:
		return "You are offline. Showing the last data received; it will refresh when the connection returns."
	case BannerReconnecting:
		return "Connection to the results database lost. Reconnecting..."
	default:
		return ""
	}
}

// Banner returns the current connectivity banner.
func (s *Store) Banner() Banner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Banner()
}
