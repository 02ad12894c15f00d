package source

import "sync"

// connState fans channel-health changes out to watchers. Each watcher has a
// one-slot mailbox drained by its own goroutine, so a slow watcher only ever
// sees the latest value.
type connState struct {
	mu       sync.Mutex
	current  bool
	watchers map[*connWatcher]struct{}
}

func newConnState(initial bool) *connState {
	return &connState{
		current:  initial,
		watchers: make(map[*connWatcher]struct{}),
	}
}

func (c *connState) get() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *connState) set(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == connected {
		return
	}
	c.current = connected
	for w := range c.watchers {
		w.offer(connected)
	}
}

func (c *connState) watch(onChange func(bool)) Subscription {
	w := &connWatcher{
		state:   c,
		mailbox: make(chan bool, 1),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.watchers[w] = struct{}{}
	w.offer(c.current)
	c.mu.Unlock()

	go w.run(onChange)
	return w
}

// closeAll unsubscribes every watcher.
func (c *connState) closeAll() {
	c.mu.Lock()
	watchers := make([]*connWatcher, 0, len(c.watchers))
	for w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.mu.Unlock()

	for _, w := range watchers {
		w.Unsubscribe()
	}
}

type connWatcher struct {
	state   *connState
	mailbox chan bool
	done    chan struct{}
	once    sync.Once
}

// offer replaces any undelivered value. Called with state.mu held, so there
// is a single producer.
func (w *connWatcher) offer(v bool) {
	select {
	case w.mailbox <- v:
		return
	default:
	}
	select {
	case <-w.mailbox:
	default:
	}
	select {
	case w.mailbox <- v:
	default:
	}
}

func (w *connWatcher) run(onChange func(bool)) {
	for {
		select {
		case <-w.done:
			return
		case v := <-w.mailbox:
			select {
			case <-w.done:
				return
			default:
			}
			onChange(v)
		}
	}
}

func (w *connWatcher) Unsubscribe() {
	w.once.Do(func() {
		w.state.mu.Lock()
		delete(w.state.watchers, w)
		w.state.mu.Unlock()
		close(w.done)
	})
}
