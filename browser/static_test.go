package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"bds-scraper/utils"
)

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="js__card"><a href="/ban-nha-rieng/x-pr1">x</a></div></body></html>`)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func TestStaticFetch(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	f := NewStatic(5*time.Second, utils.NewNopLogger())
	defer f.Close()

	html, err := f.Fetch(context.Background(), srv.URL+"/list", ".js__card")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(html, "x-pr1") {
		t.Errorf("markup missing card link: %s", html)
	}
}

func TestStaticFetchMissingElement(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	f := NewStatic(5*time.Second, utils.NewNopLogger())

	_, err := f.Fetch(context.Background(), srv.URL+"/empty", ".js__card")
	if !eris.Is(err, ErrElementMissing) {
		t.Fatalf("expected ErrElementMissing, got %v", err)
	}
	if IsFatal(err) {
		t.Error("a missing element must not be fatal")
	}
}

func TestStaticFetchNoWaitSelector(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	f := NewStatic(5*time.Second, utils.NewNopLogger())
	if _, err := f.Fetch(context.Background(), srv.URL+"/empty", ""); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestStaticFetchHTTPError(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	f := NewStatic(5*time.Second, utils.NewNopLogger())
	_, err := f.Fetch(context.Background(), srv.URL+"/gone", "")
	if err == nil {
		t.Fatal("expected an error for a 404")
	}
	if IsFatal(err) {
		t.Error("an HTTP error must not be fatal")
	}
}

func TestStaticFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewStatic(time.Second, utils.NewNopLogger())
	_, err := f.Fetch(ctx, "http://127.0.0.1:1/never", "")
	if !IsFatal(err) {
		t.Fatalf("cancelled context should be fatal, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	if !IsFatal(ErrSessionClosed) {
		t.Error("ErrSessionClosed should be fatal")
	}
	if IsFatal(eris.New("boom")) {
		t.Error("plain error should not be fatal")
	}
}
