package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/knowbase/file-backend/config"
	"github.com/knowbase/file-backend/pkg/artifact"
	"github.com/knowbase/file-backend/pkg/converter"
	"github.com/knowbase/file-backend/pkg/parser"
	"github.com/knowbase/file-backend/pkg/repository"
)

// fakeConverter writes a stub PDF, or fails without leaving output.
type fakeConverter struct {
	fail  bool
	calls int
}

func (f *fakeConverter) Convert(ctx context.Context, sourcePath, targetPath string) error {
	f.calls++
	if f.fail {
		return &converter.ConversionError{Source: sourcePath, Cause: "engine failed"}
	}
	return os.WriteFile(targetPath, []byte("%PDF-1.4 converted"), 0o644)
}

// fakeParser returns a canned parse result, or fails.
type fakeParser struct {
	fail   bool
	result parser.ParseResult
	calls  int
}

func (f *fakeParser) Parse(ctx context.Context, pdfPath string) (*parser.ParseResult, error) {
	f.calls++
	if f.fail {
		return nil, &parser.ParseError{Cause: "service returned 500"}
	}
	r := f.result
	return &r, nil
}

// fakeIndexer records every call so tests can assert batching behavior.
type fakeIndexer struct {
	available  bool
	uploadErr  error
	deleteErr  error
	nextDocID  int
	uploads    []string
	deletions  [][]string
	parsed     [][]string
	configured []string
}

func (f *fakeIndexer) Available() bool { return f.available }

func (f *fakeIndexer) UploadDocument(ctx context.Context, name string, content io.Reader) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.nextDocID++
	f.uploads = append(f.uploads, name)
	return fmt.Sprintf("doc-%d", f.nextDocID), nil
}

func (f *fakeIndexer) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	f.deletions = append(f.deletions, ids)
	return f.deleteErr
}

func (f *fakeIndexer) ParseDocuments(ctx context.Context, ids []string) error {
	f.parsed = append(f.parsed, ids)
	return nil
}

func (f *fakeIndexer) UpdateDocumentConfig(ctx context.Context, id, chunkMethod string, parserConfig json.RawMessage) error {
	f.configured = append(f.configured, id)
	return nil
}

type testEnv struct {
	svc       Service
	repo      repository.Repository
	store     *artifact.Store
	converter *fakeConverter
	parser    *fakeParser
	indexer   *fakeIndexer
	cfg       *config.AppConfig
}

func newTestEnv(c *qt.C) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	c.Assert(err, qt.IsNil)
	err = db.AutoMigrate(&repository.FileModel{}, &repository.OperationLogModel{}, &repository.UserModel{})
	c.Assert(err, qt.IsNil)

	store, err := artifact.NewStore(c.TempDir())
	c.Assert(err, qt.IsNil)

	env := &testEnv{
		repo:      repository.NewRepository(db),
		store:     store,
		converter: &fakeConverter{},
		parser: &fakeParser{result: parser.ParseResult{
			Markdown: "# Doc\n\n![fig](images/fig.png)\n",
			Images:   map[string][]byte{"fig.png": {0x89, 0x50}},
		}},
		indexer: &fakeIndexer{available: true},
	}

	cfg := &config.AppConfig{}
	cfg.Server.MaxUploadSize = 100 * 1024 * 1024
	cfg.Storage.LargeVideoThreshold = 50 * 1024 * 1024
	cfg.RAGFlow.AutoParse = true
	cfg.RAGFlow.ChunkMethod = "naive"
	cfg.RAGFlow.ParserConfig = `{"chunk_size": 1000}`
	cfg.Auth.JWTSecret = "test-secret"

	env.cfg = cfg
	env.svc = NewService(env.repo, env.store, env.converter, env.parser, env.indexer, cfg, zap.NewNop())
	return env
}

// uploadRootEntries counts regular files under the upload root, so tests can
// assert that failed pipelines leave no residue.
func uploadRootEntries(c *qt.C, store *artifact.Store) int {
	count := 0
	err := walkFiles(store.Root(), &count)
	c.Assert(err, qt.IsNil)
	return count
}

func walkFiles(dir string, count *int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := walkFiles(dir+"/"+e.Name(), count); err != nil {
				return err
			}
		} else {
			*count++
		}
	}
	return nil
}
