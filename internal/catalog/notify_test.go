package catalog

import (
	"testing"
	"time"
)

func TestSubscribe_ReceivesChangedETag(t *testing.T) {
	t.Cleanup(func() { current.Store(nil) })
	updates, unsub := Subscribe()
	defer unsub()

	c := Default()
	c.Servidores = append(c.Servidores, "NOVO")
	snap := Build(c)
	Update(snap)

	select {
	case etag := <-updates:
		if etag != snap.ETag {
			t.Errorf("Expected %s, got %s", snap.ETag, etag)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	// same content, same ETag: no notification
	Update(Build(c))
	select {
	case etag := <-updates:
		t.Errorf("unexpected update %s", etag)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	updates, unsub := Subscribe()
	unsub()
	unsub() // idempotent

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("Expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for channel close")
	}
}

func TestPublishUpdateNonBlocking(t *testing.T) {
	updates, unsub := Subscribe()
	defer unsub()

	publishUpdate("etag1")

	done := make(chan struct{})
	go func() {
		publishUpdate("etag2")
		publishUpdate("etag3")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publishUpdate blocked on slow subscriber")
	}
	if got := <-updates; got != "etag1" {
		t.Errorf("Expected the first ETag to be kept, got %s", got)
	}
}
