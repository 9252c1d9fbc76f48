package enrich

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestDownloadFileWritesAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("database-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "geo.mmdb")
	if err := DownloadFile(srv.URL, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "database-bytes" {
		t.Errorf("unexpected file content %q", data)
	}

	// No stray temp files should survive a successful download.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the final file in %s, found %d entries", dir, len(entries))
	}
}

func TestDownloadFileReports404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := DownloadFile(srv.URL, filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchDatabaseUsesCacheOnSecondCall(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("db"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	url := srv.URL + "/country.mmdb"

	p1, err := FetchDatabase(url, dir)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := FetchDatabase(url, dir)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Errorf("paths differ across calls: %s vs %s", p1, p2)
	}
	if hits.Load() != 1 {
		t.Errorf("second call should hit the cache, server saw %d requests", hits.Load())
	}
}

func TestLocateDatabaseFetchesURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("db"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p, err := LocateDatabase(srv.URL+"/country.mmdb", dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(p) != dir {
		t.Errorf("URL should resolve into the cache dir, got %s", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "db" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestLocateDatabaseLeavesLocalPaths(t *testing.T) {
	p, err := LocateDatabase("/var/lib/geo/country.mmdb", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if p != "/var/lib/geo/country.mmdb" {
		t.Errorf("local path should pass through untouched, got %s", p)
	}
}
