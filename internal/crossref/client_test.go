package crossref

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const worksResponse = `{
	"status": "ok",
	"message": {
		"DOI": "10.1016/j.gca.2019.08.005",
		"title": ["A test paper"],
		"container-title": ["Geochimica et Cosmochimica Acta"],
		"author": [{"given": "Samuel", "family": "Jennings"}],
		"issued": {"date-parts": [[2019, 8]]}
	}
}`

func TestWorks_Success(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(worksResponse))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	msg, err := c.Works(context.Background(), "10.1016/j.gca.2019.08.005")
	if err != nil {
		t.Fatalf("Works() error = %v", err)
	}

	if gotPath != "/works/10.1016%2Fj.gca.2019.08.005" && gotPath != "/works/10.1016/j.gca.2019.08.005" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotUA == "" {
		t.Error("User-Agent header not set")
	}
	if msg["DOI"] != "10.1016/j.gca.2019.08.005" {
		t.Errorf("message DOI = %v", msg["DOI"])
	}
	if _, ok := msg["container-title"]; !ok {
		t.Error("expected raw hyphenated keys from the API")
	}
}

func TestWorks_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Resource not found.", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Works(context.Background(), "10.9999/nope")
	if !IsNotFound(err) {
		t.Errorf("Works() error = %v, want not-found class", err)
	}
	if IsTransport(err) {
		t.Error("not-found must not classify as transport failure")
	}
}

func TestWorks_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Works(context.Background(), "10.1/x")
	if err == nil {
		t.Fatal("Works() expected error")
	}
	if !IsTransport(err) {
		t.Errorf("5xx should classify as transport failure, got %v", err)
	}
}

func TestWorks_Unreachable(t *testing.T) {
	// Point at a server that is already closed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Works(context.Background(), "10.1/x")
	if !IsTransport(err) {
		t.Errorf("connection failure should classify as transport, got %v", err)
	}
}

func TestWorks_MailtoQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("mailto")
		w.Write([]byte(worksResponse))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithMailto("editor@example.org"))
	if _, err := c.Works(context.Background(), "10.1/x"); err != nil {
		t.Fatalf("Works() error = %v", err)
	}
	if gotQuery != "editor@example.org" {
		t.Errorf("mailto = %q, want editor@example.org", gotQuery)
	}
}

func TestWorks_EmptyDOI(t *testing.T) {
	c := NewClient()
	if _, err := c.Works(context.Background(), ""); !IsNotFound(err) {
		t.Errorf("Works(\"\") error = %v, want not-found class", err)
	}
}
