// Package parser talks to the external PDF parsing service, which turns a
// PDF into Markdown plus an embedded image set. The service is OCR-backed
// and slow on scanned documents, so the request timeout is configured in
// minutes rather than seconds.
package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
)

// ParseError is the tagged outcome of a failed parse. Timeouts, non-2xx
// responses and malformed bodies all normalize to it.
type ParseError struct {
	Cause string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing document: %s: %v", e.Cause, e.Err)
	}
	return "parsing document: " + e.Cause
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseResult is the structured text extracted from one PDF.
type ParseResult struct {
	Markdown string
	// Images maps generated image filenames to raw bytes.
	Images map[string][]byte
}

// Client calls the parsing service. It performs no local cleanup; callers
// use or discard the result.
type Client struct {
	endpoint     string
	method       string
	returnImages bool
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewClient builds a parsing client from configuration.
func NewClient(cfg config.ParserConfig, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	method := cfg.Method
	if method == "" {
		method = "auto"
	}
	return &Client{
		endpoint:     cfg.URL,
		method:       method,
		returnImages: cfg.ReturnImages,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       log,
	}
}

type parseResponse struct {
	MDContent string            `json:"md_content"`
	Images    map[string]string `json:"images"`
}

// Parse sends the PDF at pdfPath to the parsing service and returns its
// Markdown rendition and extracted images.
func (c *Client) Parse(ctx context.Context, pdfPath string) (*ParseResult, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, &ParseError{Cause: "opening PDF", Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return nil, &ParseError{Cause: "building request", Err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, &ParseError{Cause: "reading PDF", Err: err}
	}
	if err := mw.Close(); err != nil {
		return nil, &ParseError{Cause: "building request", Err: err}
	}

	params := url.Values{}
	params.Set("parse_method", c.method)
	params.Set("is_json_md_dump", "false")
	params.Set("output_dir", "output")
	params.Set("return_layout", "false")
	params.Set("return_info", "false")
	params.Set("return_content_list", "false")
	params.Set("return_images", strconv.FormatBool(c.returnImages))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+params.Encode(), &body)
	if err != nil {
		return nil, &ParseError{Cause: "building request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ParseError{Cause: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("parse service returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", payload))
		return nil, &ParseError{Cause: fmt.Sprintf("service returned %d", resp.StatusCode)}
	}

	var decoded parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &ParseError{Cause: "malformed response", Err: err}
	}

	result := &ParseResult{
		Markdown: decoded.MDContent,
		Images:   make(map[string][]byte, len(decoded.Images)),
	}
	for name, dataURL := range decoded.Images {
		raw, err := decodeImage(dataURL)
		if err != nil {
			return nil, &ParseError{Cause: fmt.Sprintf("decoding image %s", name), Err: err}
		}
		result.Images[name] = raw
	}
	return result, nil
}

// decodeImage accepts both data URLs (data:image/png;base64,...) and bare
// base64 payloads.
func decodeImage(payload string) ([]byte, error) {
	if idx := strings.IndexByte(payload, ','); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}
