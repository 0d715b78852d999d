package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
	"github.com/knowbase/file-backend/pkg/repository"
)

// DeleteStrategy selects how much physical and remote state a delete
// removes.
type DeleteStrategy string

// Deletion strategies.
const (
	// StrategySoft hides the record but keeps every physical artifact.
	StrategySoft DeleteStrategy = "soft"
	// StrategyHard removes all artifacts and the database row.
	StrategyHard DeleteStrategy = "hard"
	// StrategyType applies a per-category policy and is the default.
	StrategyType DeleteStrategy = "type"
)

// ParseDeleteStrategy maps the request field to a strategy, defaulting to
// type-based deletion.
func ParseDeleteStrategy(raw string) (DeleteStrategy, error) {
	switch DeleteStrategy(raw) {
	case "":
		return StrategyType, nil
	case StrategySoft, StrategyHard, StrategyType:
		return DeleteStrategy(raw), nil
	default:
		return "", fmt.Errorf("unknown delete strategy %q: %w", raw, errdomain.ErrInvalidArgument)
	}
}

// Per-item outcome statuses.
const (
	DeleteStatusDeleted  = "deleted"
	DeleteStatusNotFound = "not_found"
	DeleteStatusFailed   = "failed"
)

// DeleteItem is one file's outcome within a delete request.
type DeleteItem struct {
	FileID   uint   `json:"file_id"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// DeleteResult echoes per-item outcomes plus the collapsed remote-delete
// outcome.
type DeleteResult struct {
	Strategy      DeleteStrategy `json:"strategy"`
	Items         []DeleteItem   `json:"items"`
	Deleted       int            `json:"deleted"`
	RemoteDeleted int            `json:"remote_deleted"`
	RemoteError   string         `json:"remote_error,omitempty"`
}

// deletePlan is the computed effect of one strategy application: which
// artifacts to remove and how to mutate the row.
type deletePlan struct {
	removeFiles []string
	removeDirs  []string
	dropRow     bool
	updates     map[string]any
}

// DeleteFiles removes a set of files under one strategy in three phases:
// validate the IDs, issue a single batched remote delete for every collected
// remote document ID, then apply per-file physical removal and commit all
// row mutations in one transaction. Remote failure never blocks local
// deletion; a commit failure rolls back the entire batch.
func (s *service) DeleteFiles(ctx context.Context, actor Actor, fileIDs []uint, strategy DeleteStrategy) (*DeleteResult, error) {
	if len(fileIDs) == 0 {
		return nil, fmt.Errorf("no file IDs given: %w", errdomain.ErrInvalidArgument)
	}

	files, err := s.repository.GetFilesByIDs(ctx, fileIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*repository.FileModel, len(files))
	for i := range files {
		byID[files[i].ID] = &files[i]
	}

	result := &DeleteResult{Strategy: strategy}

	var remoteIDs []string
	for _, f := range byID {
		if f.RagflowDocID != nil && *f.RagflowDocID != "" {
			remoteIDs = append(remoteIDs, *f.RagflowDocID)
		}
	}
	if len(remoteIDs) > 0 {
		if err := s.indexer.DeleteDocuments(ctx, remoteIDs); err != nil {
			if errors.Is(err, errdomain.ErrUnavailable) {
				s.logger.Info("index not configured, skipping remote delete",
					zap.Int("count", len(remoteIDs)))
			} else {
				s.logger.Warn("batched remote delete failed",
					zap.Int("count", len(remoteIDs)), zap.Error(err))
			}
			result.RemoteError = err.Error()
		} else {
			result.RemoteDeleted = len(remoteIDs)
		}
	}

	type pending struct {
		file *repository.FileModel
		plan deletePlan
	}
	var commits []pending

	for _, id := range fileIDs {
		file, ok := byID[id]
		if !ok {
			result.Items = append(result.Items, DeleteItem{
				FileID: id,
				Status: DeleteStatusNotFound,
				Reason: "file not found",
			})
			continue
		}

		plan := s.planDeletion(file, strategy)
		if err := s.applyRemovals(plan); err != nil {
			result.Items = append(result.Items, DeleteItem{
				FileID:   id,
				Filename: file.OriginalFilename,
				Status:   DeleteStatusFailed,
				Reason:   err.Error(),
			})
			continue
		}
		commits = append(commits, pending{file: file, plan: plan})
		result.Items = append(result.Items, DeleteItem{
			FileID:   id,
			Filename: file.OriginalFilename,
			Status:   DeleteStatusDeleted,
		})
	}

	err = s.repository.Transaction(ctx, func(tx repository.Repository) error {
		for _, p := range commits {
			if p.plan.dropRow {
				if err := tx.DeleteFile(ctx, p.file.ID); err != nil && !errors.Is(err, errdomain.ErrNotFound) {
					return err
				}
			} else if len(p.plan.updates) > 0 {
				if _, err := tx.UpdateFile(ctx, p.file.ID, p.plan.updates); err != nil {
					return err
				}
			}
			s.logOperation(ctx, tx, actor, repository.OperationDelete,
				fmt.Sprintf("deleted with strategy %s", strategy), p.file)
		}
		if len(remoteIDs) > 0 {
			s.logOperation(ctx, tx, actor, repository.OperationDelete,
				fmt.Sprintf("removed %d document(s) from index", len(remoteIDs)), nil)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("committing deletion batch: %w", err)
	}

	result.Deleted = len(commits)
	return result, nil
}

// planDeletion computes the strategy's effect on one file.
func (s *service) planDeletion(file *repository.FileModel, strategy DeleteStrategy) deletePlan {
	clearDerived := func(plan *deletePlan) {
		if file.PDFPath != nil {
			plan.removeFiles = append(plan.removeFiles, *file.PDFPath)
		}
		if file.MDPath != nil {
			plan.removeFiles = append(plan.removeFiles, *file.MDPath)
		}
		if file.ImagesDir != nil {
			plan.removeDirs = append(plan.removeDirs, *file.ImagesDir)
		}
	}

	switch strategy {
	case StrategySoft:
		return deletePlan{updates: map[string]any{
			repository.FileColumn.IsDeleted:    true,
			repository.FileColumn.RagflowDocID: nil,
		}}

	case StrategyHard:
		plan := deletePlan{dropRow: true}
		plan.removeFiles = append(plan.removeFiles, file.FilePath)
		clearDerived(&plan)
		return plan

	default: // StrategyType
		plan := deletePlan{updates: map[string]any{
			repository.FileColumn.IsDeleted:    true,
			repository.FileColumn.RagflowDocID: nil,
		}}
		switch file.FileType {
		case TypeDocument, TypePDF:
			plan.removeFiles = append(plan.removeFiles, file.FilePath)
			clearDerived(&plan)
			plan.updates[repository.FileColumn.PDFPath] = nil
			plan.updates[repository.FileColumn.MDPath] = nil
			plan.updates[repository.FileColumn.ImagesDir] = nil
		case TypeImage, TypeSpreadsheet:
			plan.removeFiles = append(plan.removeFiles, file.FilePath)
		case TypeVideo:
			if file.FileSize > s.largeVideoThreshold {
				plan.removeFiles = append(plan.removeFiles, file.FilePath)
			}
		}
		return plan
	}
}

// applyRemovals deletes the planned artifacts. Missing targets are no-ops,
// so re-deleting an already-deleted file never fails here.
func (s *service) applyRemovals(plan deletePlan) error {
	for _, rel := range plan.removeFiles {
		if err := s.store.RemoveFile(rel); err != nil {
			return err
		}
	}
	for _, rel := range plan.removeDirs {
		if err := s.store.RemoveDir(rel); err != nil {
			return err
		}
	}
	return nil
}
