// Package ragflow syncs documents into a RAGFlow dataset over its HTTP API.
// All operations degrade gracefully: a disabled or unreachable index never
// blocks the file lifecycle, callers decide how far to carry the error.
package ragflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
	errdomain "github.com/knowbase/file-backend/pkg/errors"
)

// SyncError marks a failure while talking to the index. Callers treat it as
// best-effort during ingestion and as fatal during deletion.
type SyncError struct {
	Op    string
	Cause string
	Err   error
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index sync %s: %s: %v", e.Op, e.Cause, e.Err)
	}
	return fmt.Sprintf("index sync %s: %s", e.Op, e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Client is the RAGFlow dataset client.
type Client struct {
	enabled    bool
	baseURL    string
	apiKey     string
	datasetID  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a sync client. A client whose configuration is disabled
// or incomplete stays constructible, its operations return ErrUnavailable.
func NewClient(cfg config.RAGFlowConfig, log *zap.Logger) *Client {
	return &Client{
		enabled:    cfg.Enabled,
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		datasetID:  cfg.DatasetID,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log,
	}
}

// Available reports whether the client is configured to reach an index.
func (c *Client) Available() bool {
	return c.enabled && c.baseURL != "" && c.apiKey != "" && c.datasetID != ""
}

func (c *Client) checkAvailable(op string) error {
	if !c.Available() {
		return &SyncError{Op: op, Cause: "index not configured", Err: errdomain.ErrUnavailable}
	}
	return nil
}

func (c *Client) documentsURL() string {
	return fmt.Sprintf("%s/api/v1/datasets/%s/documents", c.baseURL, c.datasetID)
}

// envelope is RAGFlow's standard response wrapper. Failures can surface at
// the top level or nested inside data, both on HTTP 200.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type nestedStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(op string, req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SyncError{Op: op, Cause: "request failed", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &SyncError{Op: op, Cause: "reading response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SyncError{Op: op, Cause: fmt.Sprintf("index returned %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &SyncError{Op: op, Cause: "malformed response", Err: err}
	}
	if env.Code != 0 {
		return nil, &SyncError{Op: op, Cause: fmt.Sprintf("index rejected request: %s (code %d)", env.Message, env.Code)}
	}
	// Some endpoints report failure inside data while the outer code is 0.
	var nested nestedStatus
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &nested) == nil && nested.Code != 0 {
		return nil, &SyncError{Op: op, Cause: fmt.Sprintf("index rejected request: %s (code %d)", nested.Message, nested.Code)}
	}
	return env.Data, nil
}

type uploadedDocument struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UploadDocument pushes one document into the dataset and returns the
// document ID the index assigned.
func (c *Client) UploadDocument(ctx context.Context, name string, content io.Reader) (string, error) {
	const op = "upload"
	if err := c.checkAvailable(op); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", &SyncError{Op: op, Cause: "building request", Err: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", &SyncError{Op: op, Cause: "reading document", Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &SyncError{Op: op, Cause: "building request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.documentsURL(), &body)
	if err != nil {
		return "", &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.do(op, req)
	if err != nil {
		return "", err
	}

	var docs []uploadedDocument
	if err := json.Unmarshal(data, &docs); err != nil || len(docs) == 0 {
		return "", &SyncError{Op: op, Cause: "response carries no document id", Err: err}
	}
	c.logger.Info("document uploaded to index",
		zap.String("name", name),
		zap.String("documentID", docs[0].ID))
	return docs[0].ID, nil
}

// DeleteDocuments removes the given documents from the dataset in one call.
// An empty list is a no-op: the endpoint treats an absent id list as
// delete-everything, which must never happen implicitly.
func (c *Client) DeleteDocuments(ctx context.Context, ids []string) error {
	const op = "delete"
	if len(ids) == 0 {
		return nil
	}
	if err := c.checkAvailable(op); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.documentsURL(), bytes.NewReader(payload))
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(op, req); err != nil {
		return err
	}
	c.logger.Info("documents deleted from index", zap.Int("count", len(ids)))
	return nil
}

// ParseDocuments asks the index to chunk and embed the given documents.
func (c *Client) ParseDocuments(ctx context.Context, ids []string) error {
	const op = "parse"
	if len(ids) == 0 {
		return nil
	}
	if err := c.checkAvailable(op); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string][]string{"document_ids": ids})
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.documentsURL()+"/chunks", bytes.NewReader(payload))
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(op, req)
	return err
}

// UpdateDocumentConfig sets the chunking method and parser configuration of
// one document before parsing.
func (c *Client) UpdateDocumentConfig(ctx context.Context, id, chunkMethod string, parserConfig json.RawMessage) error {
	const op = "configure"
	if err := c.checkAvailable(op); err != nil {
		return err
	}

	body := map[string]any{}
	if chunkMethod != "" {
		body["chunk_method"] = chunkMethod
	}
	if len(parserConfig) > 0 {
		body["parser_config"] = parserConfig
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.documentsURL()+"/"+id, bytes.NewReader(payload))
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(op, req)
	return err
}

// TestConnection verifies the dataset is reachable with the configured
// credentials by listing it.
func (c *Client) TestConnection(ctx context.Context) error {
	const op = "connect"
	if err := c.checkAvailable(op); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentsURL()+"?page=1&page_size=1", nil)
	if err != nil {
		return &SyncError{Op: op, Cause: "building request", Err: err}
	}
	_, err = c.do(op, req)
	return err
}
