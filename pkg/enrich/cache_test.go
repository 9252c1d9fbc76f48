package enrich

import (
	"testing"
)

func openTestCache(t *testing.T) *DiskCache {
	t.Helper()
	c, err := OpenDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("close cache: %v", err)
		}
	})
	return c
}

func TestCachePutGet(t *testing.T) {
	c := openTestCache(t)

	want := Info{CountryCode: "DE", CountryName: "Germany"}
	if err := c.Put("194.25.0.1", want); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get("194.25.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCacheMissIsNotAnError(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Get("203.0.113.1")
	if err != nil {
		t.Fatalf("miss should not error: %v", err)
	}
	if ok {
		t.Error("expected a miss for an address never written")
	}
}

func TestCacheNegativeResult(t *testing.T) {
	c := openTestCache(t)
	if err := c.Put("203.0.113.9", Info{}); err != nil {
		t.Fatal(err)
	}
	info, ok, err := c.Get("203.0.113.9")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("a cached negative result is still a hit")
	}
	if info.CountryCode != "" {
		t.Errorf("expected empty info, got %+v", info)
	}
}

func TestCacheBatchPut(t *testing.T) {
	c := openTestCache(t)
	entries := map[string]Info{
		"8.8.8.8":     {CountryCode: "US", CountryName: "United States"},
		"194.25.0.1":  {CountryCode: "DE", CountryName: "Germany"},
		"203.0.113.1": {},
	}
	if err := c.BatchPut(entries); err != nil {
		t.Fatal(err)
	}
	for addr, want := range entries {
		got, ok, err := c.Get(addr)
		if err != nil || !ok {
			t.Fatalf("Get(%s): ok=%v err=%v", addr, ok, err)
		}
		if got != want {
			t.Errorf("Get(%s) = %+v, want %+v", addr, got, want)
		}
	}
}
