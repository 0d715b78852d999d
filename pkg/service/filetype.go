package service

import (
	"fmt"
	"path/filepath"
	"strings"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
)

// File categories accepted at upload.
const (
	TypeDocument    = "document"
	TypeSpreadsheet = "spreadsheet"
	TypePDF         = "pdf"
	TypeImage       = "image"
	TypeVideo       = "video"
)

// allowedExtensions maps each category to the lowercase extensions it
// accepts.
var allowedExtensions = map[string]map[string]bool{
	TypeDocument:    {"doc": true, "docx": true},
	TypeSpreadsheet: {"xls": true, "xlsx": true},
	TypePDF:         {"pdf": true},
	TypeImage:       {"jpg": true, "jpeg": true, "png": true, "gif": true},
	TypeVideo:       {"mp4": true, "avi": true, "mkv": true},
}

// fileFormat extracts the lowercase extension without the dot.
func fileFormat(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// validateUpload rejects category/extension mismatches and oversized files
// before any artifact is touched.
func (s *service) validateUpload(filename, category string, size int64) (string, error) {
	exts, ok := allowedExtensions[category]
	if !ok {
		return "", fmt.Errorf("unknown category %q: %w", category, errdomain.ErrInvalidArgument)
	}
	format := fileFormat(filename)
	if !exts[format] {
		return "", fmt.Errorf("extension %q not allowed for category %q: %w", format, category, errdomain.ErrInvalidArgument)
	}
	if s.maxUploadSize > 0 && size > s.maxUploadSize {
		return "", fmt.Errorf("file exceeds maximum upload size (%d bytes): %w", s.maxUploadSize, errdomain.ErrInvalidArgument)
	}
	return format, nil
}

// needsConversion reports whether the format requires an office-to-PDF
// conversion before parsing.
func needsConversion(format string) bool {
	return format == "doc" || format == "docx"
}

// needsParsing reports whether the category/format pair goes through the
// Markdown extraction stages.
func needsParsing(format string) bool {
	return needsConversion(format) || format == "pdf"
}
