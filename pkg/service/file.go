package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
	"github.com/knowbase/file-backend/pkg/repository"
)

func (s *service) ListFiles(ctx context.Context, params repository.ListFilesParams) (*repository.FileList, error) {
	return s.repository.ListFiles(ctx, params)
}

// getLive returns a live record. Soft-deleted rows are tombstones, content
// and metadata endpoints must refuse them.
func (s *service) getLive(ctx context.Context, fileID uint) (*repository.FileModel, error) {
	file, err := s.repository.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsDeleted {
		return nil, fmt.Errorf("file %d: %w", fileID, errdomain.ErrNotFound)
	}
	return file, nil
}

// GetFile returns a live record and records the read in the audit trail.
func (s *service) GetFile(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, error) {
	file, err := s.getLive(ctx, fileID)
	if err != nil {
		return nil, err
	}
	s.logOperation(ctx, s.repository, actor, repository.OperationRead, "viewed file detail", file)
	return file, nil
}

func (s *service) UpdateFileDescription(ctx context.Context, actor Actor, fileID uint, description string) (*repository.FileModel, error) {
	if _, err := s.getLive(ctx, fileID); err != nil {
		return nil, err
	}
	file, err := s.repository.UpdateFile(ctx, fileID, map[string]any{
		repository.FileColumn.Description: description,
	})
	if err != nil {
		return nil, err
	}
	s.logOperation(ctx, s.repository, actor, repository.OperationUpdate, "updated description", file)
	return file, nil
}

// ResolveOriginal returns the record and the absolute path of its original
// file, refusing soft-deleted records and missing artifacts alike. The
// download is recorded in the audit trail.
func (s *service) ResolveOriginal(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, string, error) {
	file, err := s.getLive(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if !s.store.Exists(file.FilePath) {
		return nil, "", fmt.Errorf("original of file %d: %w", fileID, errdomain.ErrNotFound)
	}
	s.logOperation(ctx, s.repository, actor, repository.OperationRead, "downloaded original", file)
	return file, s.store.Abs(file.FilePath), nil
}

// ResolvePDF returns the derived PDF of a document-category file.
func (s *service) ResolvePDF(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, string, error) {
	file, err := s.getLive(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if file.PDFPath == nil || !s.store.Exists(*file.PDFPath) {
		return nil, "", fmt.Errorf("derived PDF of file %d: %w", fileID, errdomain.ErrNotFound)
	}
	s.logOperation(ctx, s.repository, actor, repository.OperationRead, "previewed PDF", file)
	return file, s.store.Abs(*file.PDFPath), nil
}

// ResolveMarkdown returns the derived Markdown artifact path.
func (s *service) ResolveMarkdown(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, string, error) {
	file, err := s.getLive(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if file.MDPath == nil || !s.store.Exists(*file.MDPath) {
		return nil, "", fmt.Errorf("markdown of file %d: %w", fileID, errdomain.ErrNotFound)
	}
	s.logOperation(ctx, s.repository, actor, repository.OperationRead, "read markdown", file)
	return file, s.store.Abs(*file.MDPath), nil
}

func (s *service) ListOperationLogs(ctx context.Context, params repository.ListOperationLogsParams) (*repository.OperationLogList, error) {
	return s.repository.ListOperationLogs(ctx, params)
}

// ExportOperationLogsCSV streams the filtered audit trail as CSV, paging
// through the repository so exports are not bounded by one page size.
func (s *service) ExportOperationLogsCSV(ctx context.Context, params repository.ListOperationLogsParams, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "operation_type", "operation_time", "file_name", "file_type", "user_id", "ip_address", "details"}); err != nil {
		return err
	}

	params.Page = 1
	params.PageSize = repository.MaxPageSize
	for {
		page, err := s.repository.ListOperationLogs(ctx, params)
		if err != nil {
			return err
		}
		for _, e := range page.Entries {
			record := []string{
				strconv.FormatUint(uint64(e.ID), 10),
				e.OperationType,
				e.OperationTime.Format(time.RFC3339),
				e.FileName,
				e.FileType,
				strconv.FormatUint(uint64(e.UserID), 10),
				e.IPAddress,
				e.Details,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		if params.Page >= page.Pages {
			break
		}
		params.Page++
	}

	cw.Flush()
	return cw.Error()
}
