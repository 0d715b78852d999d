// Package service implements the file lifecycle: upload ingestion with
// derived-artifact generation, listing and content resolution, multi-strategy
// deletion and the audit trail around all of it.
package service

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
	"github.com/knowbase/file-backend/pkg/converter"
	"github.com/knowbase/file-backend/pkg/parser"
	"github.com/knowbase/file-backend/pkg/repository"
)

// ArtifactStore is the slice of the artifact store the service depends on.
// *artifact.Store satisfies it.
type ArtifactStore interface {
	Abs(rel string) string
	OriginalDir(category string, t time.Time) (string, error)
	NewObjectName(ext string) string
	SaveOriginal(relDir, storedName string, r io.Reader) (string, int64, error)
	AllocateIngestDir() (string, error)
	WriteImage(ingestID, filename string, data []byte) error
	WriteMarkdown(ingestID, markdown string) (string, error)
	MarkdownPath(ingestID string) string
	ImagesDir(ingestID string) string
	RewriteImageRefs(markdown, ingestID string, filenames []string) string
	RemoveFile(rel string) error
	RemoveDir(rel string) error
	Exists(rel string) bool
}

// DocumentParser extracts Markdown and images from a PDF.
type DocumentParser interface {
	Parse(ctx context.Context, pdfPath string) (*parser.ParseResult, error)
}

// IndexSyncer pushes Markdown artifacts into the knowledge index and removes
// them again. Implementations degrade to a tagged unavailable error rather
// than failing hard when the index is not configured.
type IndexSyncer interface {
	Available() bool
	UploadDocument(ctx context.Context, name string, content io.Reader) (string, error)
	DeleteDocuments(ctx context.Context, ids []string) error
	ParseDocuments(ctx context.Context, ids []string) error
	UpdateDocumentConfig(ctx context.Context, id, chunkMethod string, parserConfig json.RawMessage) error
}

// Actor identifies the authenticated caller for audit logging.
type Actor struct {
	UserID uint
	IP     string
}

// Service is the interface for the file service.
type Service interface {
	// Ingestion
	IngestFile(ctx context.Context, req IngestRequest) (*repository.FileModel, error)
	IngestBatch(ctx context.Context, reqs []IngestRequest) *BatchResult

	// Reads
	ListFiles(ctx context.Context, params repository.ListFilesParams) (*repository.FileList, error)
	GetFile(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, error)
	UpdateFileDescription(ctx context.Context, actor Actor, fileID uint, description string) (*repository.FileModel, error)
	ResolveOriginal(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, string, error)
	ResolvePDF(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, string, error)
	ResolveMarkdown(ctx context.Context, actor Actor, fileID uint) (*repository.FileModel, string, error)

	// Deletion
	DeleteFiles(ctx context.Context, actor Actor, fileIDs []uint, strategy DeleteStrategy) (*DeleteResult, error)

	// Audit
	ListOperationLogs(ctx context.Context, params repository.ListOperationLogsParams) (*repository.OperationLogList, error)
	ExportOperationLogsCSV(ctx context.Context, params repository.ListOperationLogsParams, w io.Writer) error

	// Auth
	Login(ctx context.Context, username, password string) (string, *repository.UserModel, error)
	CreateUser(ctx context.Context, username, password string) (*repository.UserModel, error)
	GetUser(ctx context.Context, userID uint) (*repository.UserModel, error)
}

type service struct {
	repository repository.Repository
	store      ArtifactStore
	converter  converter.Converter
	parser     DocumentParser
	indexer    IndexSyncer
	logger     *zap.Logger

	maxUploadSize       int64
	largeVideoThreshold int64
	autoParse           bool
	chunkMethod         string
	parserConfig        json.RawMessage
	auth                config.AuthConfig
}

// NewService initiates a service instance. Every collaborator is injected so
// tests can substitute fakes.
func NewService(
	r repository.Repository,
	store ArtifactStore,
	conv converter.Converter,
	docParser DocumentParser,
	indexer IndexSyncer,
	cfg *config.AppConfig,
	log *zap.Logger,
) Service {
	return &service{
		repository:          r,
		store:               store,
		converter:           conv,
		parser:              docParser,
		indexer:             indexer,
		logger:              log,
		maxUploadSize:       cfg.Server.MaxUploadSize,
		largeVideoThreshold: cfg.Storage.LargeVideoThreshold,
		autoParse:           cfg.RAGFlow.AutoParse,
		chunkMethod:         cfg.RAGFlow.ChunkMethod,
		parserConfig:        parserConfigJSON(cfg.RAGFlow.ParserConfig),
		auth:                cfg.Auth,
	}
}

func parserConfigJSON(raw string) json.RawMessage {
	if raw == "" || !json.Valid([]byte(raw)) {
		return nil
	}
	return json.RawMessage(raw)
}

func (s *service) logOperation(ctx context.Context, repo repository.Repository, actor Actor, opType, details string, file *repository.FileModel) {
	entry := &repository.OperationLogModel{
		OperationType: opType,
		IPAddress:     actor.IP,
		Details:       details,
		UserID:        actor.UserID,
	}
	if file != nil {
		id := file.ID
		entry.FileID = &id
		entry.FileName = file.OriginalFilename
		entry.FileType = file.FileType
	}
	if err := repo.CreateOperationLog(ctx, entry); err != nil {
		s.logger.Warn("writing operation log", zap.Error(err))
	}
}
