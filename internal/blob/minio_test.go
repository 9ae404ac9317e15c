package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestExportKey(t *testing.T) {
	if got := ExportKey("org_1", "doc_1", "abc", "Letter.pdf"); got != "exports/org_1/doc_1/abc/Letter.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ExportKey("org_1", "doc_1", "", "Letter.pdf"); got != "exports/org_1/doc_1/latest/Letter.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestPutUploadsAndPresigns(t *testing.T) {
	var mu sync.Mutex
	var uploaded []byte
	var uploadPath, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			uploaded, uploadPath, contentType = body, r.URL.Path, r.Header.Get("Content-Type")
			mu.Unlock()
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, err := New(Config{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "exports",
		URLTTL:    time.Minute,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	obj, err := store.Put(context.Background(), "exports/org_1/doc_1/latest/Letter.pdf", "Letter.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if string(uploaded) != "%PDF" || contentType != "application/pdf" {
		t.Fatalf("unexpected upload body %q content-type %q", uploaded, contentType)
	}
	if uploadPath != "/exports/exports/org_1/doc_1/latest/Letter.pdf" {
		t.Fatalf("unexpected upload path %q", uploadPath)
	}
	if !strings.Contains(obj.URL, "X-Amz-Signature=") || !strings.Contains(obj.URL, "response-content-disposition=") {
		t.Fatalf("expected presigned url, got %q", obj.URL)
	}
	if obj.Size != 4 {
		t.Fatalf("unexpected size %d", obj.Size)
	}
}
