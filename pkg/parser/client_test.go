package parser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
)

func writePDF(c *qt.C) string {
	path := filepath.Join(c.TempDir(), "report.pdf")
	err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644)
	c.Assert(err, qt.IsNil)
	return path
}

func newTestClient(c *qt.C, serverURL string) *Client {
	log := zap.NewNop()
	return NewClient(config.ParserConfig{
		URL:          serverURL,
		Method:       "auto",
		Timeout:      5 * time.Second,
		ReturnImages: true,
	}, log)
}

func TestParse(t *testing.T) {
	c := qt.New(t)

	img := []byte{0x89, 0x50, 0x4e, 0x47}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.Check(r.Method, qt.Equals, http.MethodPost)
		c.Check(r.URL.Query().Get("parse_method"), qt.Equals, "auto")
		c.Check(r.URL.Query().Get("return_images"), qt.Equals, "true")
		c.Check(r.URL.Query().Get("is_json_md_dump"), qt.Equals, "false")

		err := r.ParseMultipartForm(1 << 20)
		c.Assert(err, qt.IsNil)
		f, header, err := r.FormFile("file")
		c.Assert(err, qt.IsNil)
		defer f.Close()
		c.Check(header.Filename, qt.Equals, "report.pdf")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"md_content": "# Report\n\n![chart](images/chart.png)\n",
			"images": map[string]string{
				"chart.png": "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(c, srv.URL)
	result, err := client.Parse(context.Background(), writePDF(c))
	c.Assert(err, qt.IsNil)
	c.Check(result.Markdown, qt.Contains, "# Report")
	c.Check(result.Images["chart.png"], qt.DeepEquals, img)
}

func TestParse_BareBase64Image(t *testing.T) {
	c := qt.New(t)

	img := []byte("raw image bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"md_content": "text",
			"images": map[string]string{
				"pic.jpg": base64.StdEncoding.EncodeToString(img),
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(c, srv.URL).Parse(context.Background(), writePDF(c))
	c.Assert(err, qt.IsNil)
	c.Check(result.Images["pic.jpg"], qt.DeepEquals, img)
}

func TestParse_ServiceError(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(c, srv.URL).Parse(context.Background(), writePDF(c))
	var perr *ParseError
	c.Assert(err, qt.ErrorAs, &perr)
	c.Check(perr.Cause, qt.Contains, "500")
}

func TestParse_MalformedResponse(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(c, srv.URL).Parse(context.Background(), writePDF(c))
	var perr *ParseError
	c.Assert(err, qt.ErrorAs, &perr)
	c.Check(perr.Cause, qt.Equals, "malformed response")
}

func TestParse_Timeout(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	log := zap.NewNop()
	client := NewClient(config.ParserConfig{
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
	}, log)
	_, err := client.Parse(context.Background(), writePDF(c))
	var perr *ParseError
	c.Assert(err, qt.ErrorAs, &perr)
	c.Check(perr.Cause, qt.Equals, "request failed")
}

func TestParse_SourceMissing(t *testing.T) {
	c := qt.New(t)

	client := newTestClient(c, "http://127.0.0.1:0")
	_, err := client.Parse(context.Background(), filepath.Join(c.TempDir(), "gone.pdf"))
	var perr *ParseError
	c.Assert(err, qt.ErrorAs, &perr)
	c.Check(perr.Cause, qt.Equals, "opening PDF")
}

func TestParse_BadImageEncoding(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"md_content": "text",
			"images":     map[string]string{"broken.png": "data:image/png;base64,@@@@"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(c, srv.URL).Parse(context.Background(), writePDF(c))
	var perr *ParseError
	c.Assert(err, qt.ErrorAs, &perr)
	c.Check(perr.Cause, qt.Contains, "broken.png")
}
