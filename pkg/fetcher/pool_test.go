package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vodsnap/vodsnap/pkg/errors"
	"github.com/vodsnap/vodsnap/pkg/progress"
)

// countingReporter records progress calls for assertions.
type countingReporter struct {
	mu         sync.Mutex
	started    bool
	total      int64
	increments int
	completed  bool
}

func (r *countingReporter) Start(total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.total = total
}

func (r *countingReporter) Update(int64, string, string) {}

func (r *countingReporter) Increment(string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.increments++
}

func (r *countingReporter) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
}

func (r *countingReporter) Updates() <-chan progress.Event {
	ch := make(chan progress.Event)
	close(ch)
	return ch
}

func poolItems(t *testing.T, serverURL string, paths []string, count int) []Item {
	t.Helper()
	dir := t.TempDir()
	items := make([]Item, count)
	for i := 0; i < count; i++ {
		items[i] = Item{
			Index: i,
			URL:   fmt.Sprintf("%s/%s", serverURL, paths[i%len(paths)]),
			Path:  filepath.Join(dir, fmt.Sprintf("segment_%06d.ts", i)),
		}
	}
	return items
}

func TestFetchAllSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data for %s", r.URL.Path)
	}))
	defer server.Close()

	const total = 12
	items := poolItems(t, server.URL, []string{"ok"}, total)

	rep := &countingReporter{}
	rep.Start(total)
	c := testClient(Options{})
	if err := c.FetchAll(context.Background(), items, 4, rep); err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}

	if rep.increments != total {
		t.Errorf("Increment count = %d, want %d", rep.increments, total)
	}
	for _, item := range items {
		info, err := os.Stat(item.Path)
		if err != nil {
			t.Fatalf("Item %d missing: %v", item.Index, err)
		}
		if info.Size() == 0 {
			t.Errorf("Item %d is empty", item.Index)
		}
	}
}

func TestFetchAllAggregatesFailures(t *testing.T) {
	// K items, F always failing: exactly F failures and K-F successes,
	// regardless of scheduling order.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "segment data")
	}))
	defer server.Close()

	const total, failing = 20, 5
	dir := t.TempDir()
	items := make([]Item, total)
	for i := 0; i < total; i++ {
		name := "ok"
		if i < failing {
			name = "fail"
		}
		items[i] = Item{
			Index: i,
			URL:   fmt.Sprintf("%s/%s/%d", server.URL, name, i),
			Path:  filepath.Join(dir, fmt.Sprintf("segment_%06d.ts", i)),
		}
	}

	rep := &countingReporter{}
	rep.Start(total)
	c := testClient(Options{Retries: 2})
	err := c.FetchAll(context.Background(), items, 6, rep)
	if err == nil {
		t.Fatal("FetchAll() should fail when some items fail")
	}
	if !errors.IsType(err, errors.FetchError) {
		t.Fatalf("Expected a FetchError, got %v", err)
	}

	var se *errors.StructuredError
	if !stderrors.As(err, &se) {
		t.Fatalf("Expected a StructuredError, got %T", err)
	}
	if want := fmt.Sprintf("%d of %d downloads failed", failing, total); se.Message != want {
		t.Errorf("Message = %q, want %q", se.Message, want)
	}
	if se.Details == "" {
		t.Error("Aggregate error should carry the first observed error")
	}

	// Progress counts every completed item, failed or not.
	if rep.increments != total {
		t.Errorf("Increment count = %d, want %d", rep.increments, total)
	}

	// Successes are left in place, not rolled back.
	succeeded := 0
	for i := failing; i < total; i++ {
		if _, err := os.Stat(items[i].Path); err == nil {
			succeeded++
		}
	}
	if succeeded != total-failing {
		t.Errorf("Successful files on disk = %d, want %d", succeeded, total-failing)
	}
	for i := 0; i < failing; i++ {
		if _, err := os.Stat(items[i].Path); !os.IsNotExist(err) {
			t.Errorf("Failed item %d left a file behind", i)
		}
	}
}

func TestFetchAllEmpty(t *testing.T) {
	c := testClient(Options{})
	if err := c.FetchAll(context.Background(), nil, 4, nil); err != nil {
		t.Errorf("FetchAll() on no items should be a no-op, got %v", err)
	}
}

func TestFetchAllWorkersCappedByItemCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "x")
	}))
	defer server.Close()

	items := poolItems(t, server.URL, []string{"ok"}, 2)
	c := testClient(Options{})
	// More workers than items must not deadlock or error.
	if err := c.FetchAll(context.Background(), items, 64, nil); err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
}
