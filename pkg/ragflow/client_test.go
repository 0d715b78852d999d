package ragflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
	errdomain "github.com/knowbase/file-backend/pkg/errors"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.RAGFlowConfig{
		Enabled:   true,
		URL:       serverURL,
		APIKey:    "test-key",
		DatasetID: "ds-1",
	}, zap.NewNop())
}

func TestUploadDocument(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPost)
		c.Check(r.URL.Path, qt.Equals, "/api/v1/datasets/ds-1/documents")
		c.Check(r.Header.Get("Authorization"), qt.Equals, "Bearer test-key")

		err := r.ParseMultipartForm(1 << 20)
		c.Assert(err, qt.IsNil)
		f, header, err := r.FormFile("file")
		c.Assert(err, qt.IsNil)
		defer f.Close()
		c.Check(header.Filename, qt.Equals, "notes.md")
		content, _ := io.ReadAll(f)
		c.Check(string(content), qt.Equals, "# notes")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": []map[string]string{{"id": "doc-42", "name": "notes.md"}},
		})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).UploadDocument(context.Background(), "notes.md", strings.NewReader("# notes"))
	c.Assert(err, qt.IsNil)
	c.Check(id, qt.Equals, "doc-42")
}

func TestUploadDocument_TopLevelError(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 102, "message": "dataset not found"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).UploadDocument(context.Background(), "a.md", strings.NewReader("x"))
	var serr *SyncError
	c.Assert(err, qt.ErrorAs, &serr)
	c.Check(serr.Cause, qt.Contains, "dataset not found")
}

func TestUploadDocument_NestedError(t *testing.T) {
	c := qt.New(t)

	// HTTP 200 and outer code 0, but the payload itself reports failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]any{"code": 500, "message": "storage unavailable"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).UploadDocument(context.Background(), "a.md", strings.NewReader("x"))
	var serr *SyncError
	c.Assert(err, qt.ErrorAs, &serr)
	c.Check(serr.Cause, qt.Contains, "storage unavailable")
}

func TestDeleteDocuments(t *testing.T) {
	c := qt.New(t)

	var got struct {
		IDs []string `json:"ids"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodDelete)
		c.Check(r.URL.Path, qt.Equals, "/api/v1/datasets/ds-1/documents")
		err := json.NewDecoder(r.Body).Decode(&got)
		c.Assert(err, qt.IsNil)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteDocuments(context.Background(), []string{"doc-1", "doc-2"})
	c.Assert(err, qt.IsNil)
	c.Check(got.IDs, qt.DeepEquals, []string{"doc-1", "doc-2"})
}

func TestDeleteDocuments_EmptyListNeverCallsIndex(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteDocuments(context.Background(), nil)
	c.Assert(err, qt.IsNil)
}

func TestParseDocuments(t *testing.T) {
	c := qt.New(t)

	var got struct {
		DocumentIDs []string `json:"document_ids"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPost)
		c.Check(r.URL.Path, qt.Equals, "/api/v1/datasets/ds-1/documents/chunks")
		err := json.NewDecoder(r.Body).Decode(&got)
		c.Assert(err, qt.IsNil)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ParseDocuments(context.Background(), []string{"doc-7"})
	c.Assert(err, qt.IsNil)
	c.Check(got.DocumentIDs, qt.DeepEquals, []string{"doc-7"})
}

func TestUpdateDocumentConfig(t *testing.T) {
	c := qt.New(t)

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPut)
		c.Check(r.URL.Path, qt.Equals, "/api/v1/datasets/ds-1/documents/doc-9")
		err := json.NewDecoder(r.Body).Decode(&got)
		c.Assert(err, qt.IsNil)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0})
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).UpdateDocumentConfig(context.Background(), "doc-9", "naive",
		json.RawMessage(`{"chunk_size": 1000}`))
	c.Assert(err, qt.IsNil)
	c.Check(got["chunk_method"], qt.Equals, "naive")
	c.Check(got["parser_config"], qt.DeepEquals, map[string]any{"chunk_size": float64(1000)})
}

func TestOperations_Unavailable(t *testing.T) {
	c := qt.New(t)

	client := NewClient(config.RAGFlowConfig{Enabled: false}, zap.NewNop())
	c.Check(client.Available(), qt.IsFalse)

	_, err := client.UploadDocument(context.Background(), "a.md", strings.NewReader("x"))
	c.Check(err, qt.ErrorIs, errdomain.ErrUnavailable)

	err = client.DeleteDocuments(context.Background(), []string{"doc-1"})
	c.Check(err, qt.ErrorIs, errdomain.ErrUnavailable)

	err = client.TestConnection(context.Background())
	c.Check(err, qt.ErrorIs, errdomain.ErrUnavailable)

	// Empty delete succeeds even without an index, there is nothing to do.
	err = client.DeleteDocuments(context.Background(), nil)
	c.Check(err, qt.IsNil)
}

func TestTestConnection_HTTPError(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).TestConnection(context.Background())
	var serr *SyncError
	c.Assert(err, qt.ErrorAs, &serr)
	c.Check(serr.Cause, qt.Contains, "401")
}
