package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
)

// FileTableName is the table name for files
const FileTableName = "files"

// File interface defines the methods for the files table
type File interface {
	// CreateFile persists a new file record and returns it with its ID set.
	CreateFile(ctx context.Context, file *FileModel) (*FileModel, error)
	// GetFile returns the file by ID, including soft-deleted rows. Callers
	// decide whether a tombstone is acceptable.
	GetFile(ctx context.Context, fileID uint) (*FileModel, error)
	// GetFilesByIDs returns the files matching the given IDs. Missing IDs
	// are silently absent from the result.
	GetFilesByIDs(ctx context.Context, fileIDs []uint) ([]FileModel, error)
	// ListFiles returns a page of files with optional category filter and
	// search over original filename and description.
	ListFiles(ctx context.Context, params ListFilesParams) (*FileList, error)
	// UpdateFile applies the update map and returns the fresh row.
	UpdateFile(ctx context.Context, fileID uint, updateMap map[string]any) (*FileModel, error)
	// DeleteFile removes the row entirely (hard deletion strategy).
	DeleteFile(ctx context.Context, fileID uint) error
}

// FileModel is the model for the files table
type FileModel struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	// Filename is the generated, collision-resistant stored name. It is the
	// only name ever used as a filesystem path component.
	Filename string `gorm:"column:filename;size:255;not null" json:"filename"`
	// OriginalFilename is the user-facing name; arbitrary charset allowed.
	OriginalFilename string `gorm:"column:original_filename;size:255;not null" json:"original_filename"`
	// FileType is the category: document, spreadsheet, pdf, image, video.
	FileType string `gorm:"column:file_type;size:50;not null" json:"file_type"`
	// FileFormat is the lowercase extension: docx, xlsx, pdf, jpg, mp4, ...
	FileFormat string `gorm:"column:file_format;size:10;not null" json:"file_format"`
	// FilePath is the original's path relative to the upload root.
	FilePath string `gorm:"column:file_path;size:255;not null" json:"file_path"`
	FileSize int64  `gorm:"column:file_size;not null" json:"file_size"`

	Description string `gorm:"column:description;type:text" json:"description"`
	IsDeleted   bool   `gorm:"column:is_deleted;default:false" json:"is_deleted"`

	// PDFPath is set only for doc/docx files whose conversion succeeded.
	PDFPath *string `gorm:"column:pdf_path;size:255" json:"pdf_path"`
	// MDPath and ImagesDir are set only when the parse stage succeeded.
	MDPath    *string `gorm:"column:md_path;size:255" json:"md_path"`
	ImagesDir *string `gorm:"column:images_dir;size:255" json:"images_dir"`
	// RagflowDocID is non-nil only while the Markdown artifact is believed
	// to exist in the remote index.
	RagflowDocID *string `gorm:"column:ragflow_doc_id;size:255" json:"ragflow_doc_id"`

	UserID uint `gorm:"column:user_id" json:"user_id"`

	CreatedAt time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime" json:"updated_at"`
}

// TableName overrides the default table name for GORM
func (FileModel) TableName() string {
	return FileTableName
}

// FileColumns is the columns for the files table
type FileColumns struct {
	ID               string
	Filename         string
	OriginalFilename string
	FileType         string
	FileFormat       string
	FilePath         string
	FileSize         string
	Description      string
	IsDeleted        string
	PDFPath          string
	MDPath           string
	ImagesDir        string
	RagflowDocID     string
	UserID           string
	CreatedAt        string
	UpdatedAt        string
}

// FileColumn is the columns for the files table
var FileColumn = FileColumns{
	ID:               "id",
	Filename:         "filename",
	OriginalFilename: "original_filename",
	FileType:         "file_type",
	FileFormat:       "file_format",
	FilePath:         "file_path",
	FileSize:         "file_size",
	Description:      "description",
	IsDeleted:        "is_deleted",
	PDFPath:          "pdf_path",
	MDPath:           "md_path",
	ImagesDir:        "images_dir",
	RagflowDocID:     "ragflow_doc_id",
	UserID:           "user_id",
	CreatedAt:        "created_at",
	UpdatedAt:        "updated_at",
}

// ListFilesParams narrows and paginates ListFiles.
type ListFilesParams struct {
	Page        int
	PageSize    int
	FileType    string
	Search      string
	ShowDeleted bool
}

// FileList is a page of file records.
type FileList struct {
	Files    []FileModel
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

func (r *repository) CreateFile(ctx context.Context, file *FileModel) (*FileModel, error) {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, fmt.Errorf("creating file record: %w", err)
	}
	return file, nil
}

func (r *repository) GetFile(ctx context.Context, fileID uint) (*FileModel, error) {
	var file FileModel
	err := r.db.WithContext(ctx).First(&file, fileID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %d: %w", fileID, errdomain.ErrNotFound)
		}
		return nil, err
	}
	return &file, nil
}

func (r *repository) GetFilesByIDs(ctx context.Context, fileIDs []uint) ([]FileModel, error) {
	var files []FileModel
	if len(fileIDs) == 0 {
		return files, nil
	}
	err := r.db.WithContext(ctx).
		Where(fmt.Sprintf("%s IN ?", FileColumn.ID), fileIDs).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *repository) ListFiles(ctx context.Context, params ListFilesParams) (*FileList, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := r.db.WithContext(ctx).Model(&FileModel{})
	if !params.ShowDeleted {
		query = query.Where(fmt.Sprintf("%s = ?", FileColumn.IsDeleted), false)
	}
	if params.FileType != "" {
		query = query.Where(fmt.Sprintf("%s = ?", FileColumn.FileType), params.FileType)
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where(
			fmt.Sprintf("%s LIKE ? OR %s LIKE ?", FileColumn.OriginalFilename, FileColumn.Description),
			pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var files []FileModel
	err := query.
		Order(fmt.Sprintf("%s DESC", FileColumn.CreatedAt)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&files).Error
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &FileList{
		Files:    files,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}

func (r *repository) UpdateFile(ctx context.Context, fileID uint, updateMap map[string]any) (*FileModel, error) {
	res := r.db.WithContext(ctx).
		Model(&FileModel{}).
		Where(fmt.Sprintf("%s = ?", FileColumn.ID), fileID).
		Updates(updateMap)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("file %d: %w", fileID, errdomain.ErrNotFound)
	}
	return r.GetFile(ctx, fileID)
}

func (r *repository) DeleteFile(ctx context.Context, fileID uint) error {
	res := r.db.WithContext(ctx).Delete(&FileModel{}, fileID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("file %d: %w", fileID, errdomain.ErrNotFound)
	}
	return nil
}
