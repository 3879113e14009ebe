package catalog

import "sync"

type subCh = chan string // carries new ETags

var (
	subMu sync.Mutex
	subs  = make(map[subCh]struct{})
)

// Subscribe registers a listener for catalog changes and returns its
// channel and an unsubscribe func.
func Subscribe() (<-chan string, func()) {
	ch := make(subCh, 1)
	subMu.Lock()
	subs[ch] = struct{}{}
	subMu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			subMu.Lock()
			delete(subs, ch)
			close(ch)
			subMu.Unlock()
		})
	}
	return ch, unsub
}

// publishUpdate notifies all listeners without blocking; a listener that
// has not drained its previous ETag misses this one.
func publishUpdate(etag string) {
	subMu.Lock()
	for ch := range subs {
		select {
		case ch <- etag:
		default:
		}
	}
	subMu.Unlock()
}
