package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TimurManjosov/triagem/internal/catalog"
)

// readEvent reads one SSE event and returns its name and data.
func readEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if name != "" {
				return name, data
			}
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestCatalogStream(t *testing.T) {
	catalog.Update(catalog.Build(catalog.Default()))
	t.Cleanup(func() { catalog.Update(catalog.Build(catalog.Default())) })

	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/catalog/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %q", ct)
	}
	r := bufio.NewReader(resp.Body)

	name, data := readEvent(t, r)
	if name != "init" || data != catalog.Load().ETag {
		t.Fatalf("Expected init with current ETag, got %s %q", name, data)
	}

	c := catalog.Default()
	c.Servidores = append(c.Servidores, "NOVO")
	snap := catalog.Build(c)
	catalog.Update(snap)

	name, data = readEvent(t, r)
	if name != "update" {
		t.Fatalf("Expected update event, got %s", name)
	}
	if data != snap.ETag {
		t.Errorf("Expected ETag %s, got %s", snap.ETag, data)
	}
}
