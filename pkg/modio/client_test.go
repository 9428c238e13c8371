package modio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const modJSON = `{
	"id": 7,
	"name_id": "cool-mod",
	"name": "Cool Mod",
	"submitted_by": {"username": "alice"},
	"modfile": {
		"id": 99,
		"mod_id": 7,
		"version": "1.2.0",
		"filesize": 11,
		"filehash": {"md5": "abc"},
		"download": {"binary_url": "https://cdn.example.com/7"}
	}
}`

func TestMod(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/drg/mods/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key123" {
			t.Error("api key not sent")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", got)
		}
		fmt.Fprint(w, modJSON)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "drg", "key123", "tok")
	m, err := c.Mod(context.Background(), 7)
	if err != nil {
		t.Fatalf("Mod failed: %v", err)
	}
	if m.ID != 7 || m.NameID != "cool-mod" || m.Name != "Cool Mod" {
		t.Errorf("unexpected mod %+v", m)
	}
	if m.SubmittedBy.Username != "alice" {
		t.Errorf("unexpected author %q", m.SubmittedBy.Username)
	}
	if m.Modfile == nil || m.Modfile.ID != 99 || m.Modfile.Version != "1.2.0" {
		t.Errorf("unexpected modfile %+v", m.Modfile)
	}
}

func TestModsByNameID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/drg/mods" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("name_id") != "cool-mod" {
			t.Error("name_id filter not sent")
		}
		fmt.Fprintf(w, `{"data": [%s], "result_count": 1, "result_total": 1}`, modJSON)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "drg", "key123", "")
	mods, err := c.ModsByNameID(context.Background(), "cool-mod")
	if err != nil {
		t.Fatalf("ModsByNameID failed: %v", err)
	}
	if len(mods) != 1 || mods[0].ID != 7 {
		t.Errorf("unexpected mods %+v", mods)
	}
}

func TestModsBatched(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id-in") != "7,8" {
			t.Errorf("unexpected id-in %q", r.URL.Query().Get("id-in"))
		}
		fmt.Fprintf(w, `{"data": [%s], "result_count": 1, "result_total": 1}`, modJSON)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "drg", "", "")
	if _, err := c.Mods(context.Background(), []uint32{7, 8}); err != nil {
		t.Fatalf("Mods failed: %v", err)
	}

	// An empty id list never makes a request.
	mods, err := c.Mods(context.Background(), nil)
	if err != nil || mods != nil {
		t.Errorf("expected no-op for empty ids, got (%v, %v)", mods, err)
	}
}

func TestAPIErrorParsed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"code": 429, "error_ref": 11008, "message": "too many requests"}}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "drg", "", "")
	_, err := c.Mod(context.Background(), 7)
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Ref != 11008 {
		t.Errorf("unexpected error fields %+v", apiErr)
	}
	if apiErr.RetryAfter != 30*time.Second {
		t.Errorf("expected 30s backoff, got %v", apiErr.RetryAfter)
	}
	if !apiErr.Temporary() {
		t.Error("rate limiting must be temporary")
	}
	if id, ok := apiErr.OptModID(); !ok || id != 7 {
		t.Errorf("expected mod id 7, got (%d, %t)", id, ok)
	}
}

func TestNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"code": 404, "error_ref": 14000, "message": "mod not found"}}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "drg", "", "")
	_, err := c.Mod(context.Background(), 404)
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.NotFound() {
		t.Errorf("expected a not-found error, got %v", err)
	}
	if apiErr.Temporary() {
		t.Error("not-found must not be temporary")
	}
}

func TestMeRequiresToken(t *testing.T) {
	c := NewClient("http://unused", "drg", "key", "")
	err := c.Me(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		t.Errorf("expected unauthorized without a token, got %v", err)
	}
}

func TestMe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": 1, "username": "alice"}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "drg", "key", "tok")
	if err := c.Me(context.Background()); err != nil {
		t.Errorf("Me failed: %v", err)
	}
}

func TestDownload(t *testing.T) {
	content := []byte("mod binary bytes")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.Write(content)
	}))
	defer ts.Close()

	c := NewClient("http://unused", "drg", "", "")
	body, size, err := c.Download(context.Background(), ts.URL+"/file", 7)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer body.Close()
	if size != int64(len(content)) {
		t.Errorf("size %d, want %d", size, len(content))
	}
	got, _ := io.ReadAll(body)
	if string(got) != string(content) {
		t.Error("downloaded content mismatch")
	}
}

func TestDownloadBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": 403, "error_ref": 15024, "message": "subscribe first"}}`)
	}))
	defer ts.Close()

	c := NewClient("http://unused", "drg", "", "")
	_, _, err := c.Download(context.Background(), ts.URL+"/file", 7)
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if id, ok := apiErr.OptModID(); !ok || id != 7 {
		t.Errorf("expected mod id 7 on the failure, got (%d, %t)", id, ok)
	}
}
