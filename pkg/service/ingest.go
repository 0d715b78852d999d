package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/knowbase/file-backend/pkg/repository"
)

// IngestRequest carries one uploaded file through the pipeline.
type IngestRequest struct {
	// Filename is the user-facing original name. It may contain arbitrary
	// characters and is never used as a filesystem path component.
	Filename    string
	Category    string
	Description string
	Size        int64
	Content     io.Reader
	Actor       Actor
}

// BatchFailure records one rejected item of a batch upload.
type BatchFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// BatchResult accumulates per-item outcomes of a batch upload. A single
// item's failure never aborts the rest.
type BatchResult struct {
	Succeeded []*repository.FileModel `json:"succeeded"`
	Failed    []BatchFailure          `json:"failed"`
}

// IngestFile drives one uploaded file through save, optional PDF conversion,
// Markdown extraction, best-effort index sync and final persistence. Any
// conversion or parse failure removes everything written so far and leaves no
// record behind.
func (s *service) IngestFile(ctx context.Context, req IngestRequest) (*repository.FileModel, error) {
	format, err := s.validateUpload(req.Filename, req.Category, req.Size)
	if err != nil {
		return nil, err
	}

	relDir, err := s.store.OriginalDir(req.Category, time.Now())
	if err != nil {
		return nil, err
	}
	storedName := s.store.NewObjectName(format)
	origRel, size, err := s.store.SaveOriginal(relDir, storedName, req.Content)
	if err != nil {
		return nil, err
	}

	file := &repository.FileModel{
		Filename:         storedName,
		OriginalFilename: req.Filename,
		FileType:         req.Category,
		FileFormat:       format,
		FilePath:         origRel,
		FileSize:         size,
		Description:      req.Description,
		UserID:           req.Actor.UserID,
	}

	if needsParsing(format) {
		if err := s.deriveArtifacts(ctx, file, origRel, storedName, relDir); err != nil {
			return nil, err
		}
	}

	err = s.repository.Transaction(ctx, func(tx repository.Repository) error {
		created, err := tx.CreateFile(ctx, file)
		if err != nil {
			return err
		}
		file = created
		s.logOperation(ctx, tx, req.Actor, repository.OperationCreate,
			fmt.Sprintf("uploaded %s (%d bytes)", req.Filename, size), file)
		return nil
	})
	if err != nil {
		s.discardArtifacts(ctx, file)
		return nil, fmt.Errorf("persisting file record: %w", err)
	}

	s.logger.Info("file ingested",
		zap.Uint("fileID", file.ID),
		zap.String("category", file.FileType),
		zap.String("name", file.OriginalFilename))
	return file, nil
}

// deriveArtifacts runs the conversion, parse and sync stages for
// document/pdf files, mutating file with the resulting paths. On failure it
// removes everything the stages produced, including the saved original.
func (s *service) deriveArtifacts(ctx context.Context, file *repository.FileModel, origRel, storedName, relDir string) error {
	pdfRel := origRel
	if needsConversion(file.FileFormat) {
		base := strings.TrimSuffix(storedName, filepath.Ext(storedName))
		pdfRel = filepath.ToSlash(filepath.Join(relDir, base+".pdf"))
		if err := s.converter.Convert(ctx, s.store.Abs(origRel), s.store.Abs(pdfRel)); err != nil {
			_ = s.store.RemoveFile(origRel)
			return fmt.Errorf("converting %s: %w", file.OriginalFilename, err)
		}
		file.PDFPath = &pdfRel
	}

	result, err := s.parser.Parse(ctx, s.store.Abs(pdfRel))
	if err != nil {
		_ = s.store.RemoveFile(origRel)
		if file.PDFPath != nil {
			_ = s.store.RemoveFile(*file.PDFPath)
		}
		return fmt.Errorf("extracting markdown from %s: %w", file.OriginalFilename, err)
	}

	ingestID, err := s.store.AllocateIngestDir()
	if err != nil {
		_ = s.store.RemoveFile(origRel)
		if file.PDFPath != nil {
			_ = s.store.RemoveFile(*file.PDFPath)
		}
		return err
	}

	imageNames := make([]string, 0, len(result.Images))
	for name := range result.Images {
		imageNames = append(imageNames, name)
	}
	sort.Strings(imageNames)

	cleanup := func() {
		_ = s.store.RemoveFile(origRel)
		if file.PDFPath != nil {
			_ = s.store.RemoveFile(*file.PDFPath)
		}
		_ = s.store.RemoveFile(s.store.MarkdownPath(ingestID))
		_ = s.store.RemoveDir(s.store.ImagesDir(ingestID))
	}

	for _, name := range imageNames {
		if err := s.store.WriteImage(ingestID, name, result.Images[name]); err != nil {
			cleanup()
			return err
		}
	}

	markdown := s.store.RewriteImageRefs(result.Markdown, ingestID, imageNames)
	mdRel, err := s.store.WriteMarkdown(ingestID, markdown)
	if err != nil {
		cleanup()
		return err
	}
	imagesDir := s.store.ImagesDir(ingestID)
	file.MDPath = &mdRel
	file.ImagesDir = &imagesDir

	// Indexing is an enhancement, not a correctness requirement: a sync
	// failure is logged and the record keeps a null remote ID.
	if docID := s.syncBestEffort(ctx, file.OriginalFilename, markdown); docID != "" {
		file.RagflowDocID = &docID
	}
	return nil
}

// syncBestEffort uploads the Markdown to the index and returns the remote
// document ID, or "" when the index is unavailable or rejects the document.
func (s *service) syncBestEffort(ctx context.Context, originalName, markdown string) string {
	if !s.indexer.Available() {
		return ""
	}
	displayName := strings.TrimSuffix(originalName, filepath.Ext(originalName)) + ".md"
	docID, err := s.indexer.UploadDocument(ctx, displayName, strings.NewReader(markdown))
	if err != nil {
		s.logger.Warn("index sync failed, keeping file without remote document",
			zap.String("name", originalName), zap.Error(err))
		return ""
	}
	if s.autoParse {
		if s.chunkMethod != "" || len(s.parserConfig) > 0 {
			if err := s.indexer.UpdateDocumentConfig(ctx, docID, s.chunkMethod, s.parserConfig); err != nil {
				s.logger.Warn("configuring remote document failed", zap.String("documentID", docID), zap.Error(err))
			}
		}
		if err := s.indexer.ParseDocuments(ctx, []string{docID}); err != nil {
			s.logger.Warn("triggering remote parse failed", zap.String("documentID", docID), zap.Error(err))
		}
	}
	return docID
}

// discardArtifacts removes everything a pipeline run wrote after its final
// persistence failed, including the remote document if one was created.
func (s *service) discardArtifacts(ctx context.Context, file *repository.FileModel) {
	_ = s.store.RemoveFile(file.FilePath)
	if file.PDFPath != nil {
		_ = s.store.RemoveFile(*file.PDFPath)
	}
	if file.MDPath != nil {
		_ = s.store.RemoveFile(*file.MDPath)
	}
	if file.ImagesDir != nil {
		_ = s.store.RemoveDir(*file.ImagesDir)
	}
	if file.RagflowDocID != nil {
		if err := s.indexer.DeleteDocuments(ctx, []string{*file.RagflowDocID}); err != nil {
			s.logger.Warn("removing remote document after rollback failed", zap.Error(err))
		}
	}
}

// Batch uploads run strictly one at a time because the conversion engine is
// a single shared process. The pauses between items are a deliberate
// throttle letting process handles and descriptors release.
const (
	batchYield      = 100 * time.Millisecond
	batchGroupSize  = 10
	batchGroupPause = 500 * time.Millisecond
)

// IngestBatch sequences pipeline runs in input order, committing each
// success immediately so a crash mid-batch keeps completed work.
func (s *service) IngestBatch(ctx context.Context, reqs []IngestRequest) *BatchResult {
	result := &BatchResult{}
	for i, req := range reqs {
		file, err := s.IngestFile(ctx, req)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("batch item failed",
					zap.String("name", req.Filename), zap.Error(err))
			}
			result.Failed = append(result.Failed, BatchFailure{
				Filename: req.Filename,
				Reason:   err.Error(),
			})
		} else {
			result.Succeeded = append(result.Succeeded, file)
		}

		if i == len(reqs)-1 {
			break
		}
		if (i+1)%batchGroupSize == 0 {
			time.Sleep(batchGroupPause)
		} else {
			time.Sleep(batchYield)
		}
	}
	return result
}
