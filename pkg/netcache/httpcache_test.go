package netcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slplayer/sltemplate/pkg/sltmpl"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New(t.TempDir())
	c.Backoff = time.Millisecond
	return c
}

func TestGetConditional(t *testing.T) {
	var full, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("Hello ::name::"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	ctx := context.Background()
	path, fromCache, err := c.Get(ctx, srv.URL+"/a.tpl")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fromCache {
		t.Fatalf("first fetch reported as cached")
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "Hello ::name::" {
		t.Fatalf("cached body = %q, %v", b, err)
	}

	path2, fromCache, err := c.Get(ctx, srv.URL+"/a.tpl")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if !fromCache || path2 != path {
		t.Fatalf("expected cache hit at %s, got %s (fromCache=%v)", path, path2, fromCache)
	}
	if full.Load() != 1 || notModified.Load() != 1 {
		t.Fatalf("requests: full=%d notModified=%d", full.Load(), notModified.Load())
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, err := newTestCache(t).ReadAll(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(b) != "ok" || hits.Load() != 3 {
		t.Fatalf("body=%q hits=%d", b, hits.Load())
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := newTestCache(t).Get(context.Background(), srv.URL+"/missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestGetFallsBackToStaleCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte("v1"))
	}))
	c := newTestCache(t)
	url := srv.URL + "/data.yaml"
	if _, _, err := c.Get(context.Background(), url); err != nil {
		t.Fatalf("Get: %v", err)
	}
	srv.Close()

	b, err := c.ReadAll(context.Background(), url)
	if err != nil {
		t.Fatalf("ReadAll after server shutdown: %v", err)
	}
	if string(b) != "v1" {
		t.Fatalf("got %q", b)
	}
}

func TestURLLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tpl/greet" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("Hi ::name::"))
	}))
	defer srv.Close()

	l := URLLoader{Cache: newTestCache(t), Base: srv.URL + "/tpl/"}
	tpl, err := sltmpl.ParseFrom(l, "greet")
	if err != nil {
		t.Fatalf("ParseFrom: %v", err)
	}
	out, err := tpl.Render(sltmpl.Context{"name": "Ann"}, nil)
	if err != nil || out != "Hi Ann" {
		t.Fatalf("render = %q, %v", out, err)
	}

	_, err = l.Load("nope")
	var nf sltmpl.ErrTemplateNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}
