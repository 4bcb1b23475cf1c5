package release

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/slipway-dev/slipway/retry"
)

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Initial: time.Millisecond, Multiplier: 2, Max: 5 * time.Millisecond}
}

func writeAsset(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// recordingHost is a minimal release-host fake.
type recordingHost struct {
	mu       sync.Mutex
	assets   map[string][]byte // name -> contents
	requests []string          // "METHOD path"
	failPut  int               // number of PUTs to fail with 500 before succeeding
}

func newRecordingHost() *recordingHost {
	return &recordingHost{assets: make(map[string][]byte)}
}

func (h *recordingHost) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.requests = append(h.requests, r.Method+" "+r.URL.Path)

		name := filepath.Base(r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			if h.failPut > 0 {
				h.failPut--
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if _, exists := h.assets[name]; exists {
				w.WriteHeader(http.StatusConflict)
				return
			}
			body, _ := io.ReadAll(r.Body)
			h.assets[name] = body
			w.WriteHeader(http.StatusCreated)
		case http.MethodDelete:
			if _, exists := h.assets[name]; !exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(h.assets, name)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestClient(t *testing.T, host *recordingHost) *Client {
	t.Helper()
	srv := httptest.NewServer(host.handler())
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Token: "test-token", Retry: fastRetry()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

func TestAttachAsset_UploadsUnderFileName(t *testing.T) {
	host := newRecordingHost()
	c := newTestClient(t, host)

	asset := writeAsset(t, "demo-v1.2.3-linux.zip", "archive-bytes")
	if err := c.AttachAsset(context.Background(), "v1.2.3", asset, true); err != nil {
		t.Fatalf("AttachAsset failed: %v", err)
	}

	if string(host.assets["demo-v1.2.3-linux.zip"]) != "archive-bytes" {
		t.Errorf("asset contents = %q", host.assets["demo-v1.2.3-linux.zip"])
	}
	if host.requests[0] != "PUT /releases/v1.2.3/assets/demo-v1.2.3-linux.zip" {
		t.Errorf("request = %q", host.requests[0])
	}
}

// Second run for the same tag must not fail on the pre-existing asset.
func TestAttachAsset_OverwriteOnConflict(t *testing.T) {
	host := newRecordingHost()
	c := newTestClient(t, host)

	first := writeAsset(t, "demo-v1.2.3-linux.zip", "first-run")
	if err := c.AttachAsset(context.Background(), "v1.2.3", first, true); err != nil {
		t.Fatal(err)
	}

	second := writeAsset(t, "demo-v1.2.3-linux.zip", "second-run")
	if err := c.AttachAsset(context.Background(), "v1.2.3", second, true); err != nil {
		t.Fatalf("re-attach failed: %v", err)
	}

	if string(host.assets["demo-v1.2.3-linux.zip"]) != "second-run" {
		t.Errorf("asset contents = %q, want the second run's bytes", host.assets["demo-v1.2.3-linux.zip"])
	}
}

func TestAttachAsset_ConflictWithoutOverwriteFails(t *testing.T) {
	host := newRecordingHost()
	c := newTestClient(t, host)

	first := writeAsset(t, "demo.zip", "first")
	if err := c.AttachAsset(context.Background(), "v1.2.3", first, false); err != nil {
		t.Fatal(err)
	}

	second := writeAsset(t, "demo.zip", "second")
	if err := c.AttachAsset(context.Background(), "v1.2.3", second, false); err == nil {
		t.Fatal("expected conflict error without overwrite")
	}
}

func TestAttachAsset_RetriesTransient(t *testing.T) {
	host := newRecordingHost()
	host.failPut = 2 // two 500s, then success
	c := newTestClient(t, host)

	asset := writeAsset(t, "demo.zip", "x")
	if err := c.AttachAsset(context.Background(), "v1.2.3", asset, true); err != nil {
		t.Fatalf("AttachAsset failed despite retries: %v", err)
	}
	if len(host.assets) != 1 {
		t.Error("asset not stored after retries")
	}
}

func TestAttachAsset_ClientErrorIsTerminal(t *testing.T) {
	var puts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		puts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Retry: fastRetry()})
	if err != nil {
		t.Fatal(err)
	}

	asset := writeAsset(t, "demo.zip", "x")
	if err := c.AttachAsset(context.Background(), "v1.2.3", asset, true); err == nil {
		t.Fatal("expected error for 403")
	}
	if puts != 1 {
		t.Fatalf("PUTs = %d, want 1 (4xx must not retry)", puts)
	}
}
