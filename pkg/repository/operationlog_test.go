package repository

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func uintptr(v uint) *uint { return &v }

func TestRepository_OperationLog_SurvivesHardDeletion(t *testing.T) {
	c := qt.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.CreateFile(ctx, &FileModel{
		Filename: "g.docx", OriginalFilename: "guide.docx", FileType: "document",
		FileFormat: "docx", FilePath: "document/g.docx", FileSize: 10,
	})
	c.Assert(err, qt.IsNil)

	err = repo.CreateOperationLog(ctx, &OperationLogModel{
		OperationType: OperationCreate,
		UserID:        1,
		FileID:        &created.ID,
		FileName:      created.OriginalFilename,
		FileType:      created.FileType,
		Details:       `{"message":"upload"}`,
	})
	c.Assert(err, qt.IsNil)

	c.Assert(repo.DeleteFile(ctx, created.ID), qt.IsNil)

	list, err := repo.ListOperationLogs(ctx, ListOperationLogsParams{})
	c.Assert(err, qt.IsNil)
	c.Assert(list.Entries, qt.HasLen, 1)
	c.Check(list.Entries[0].FileName, qt.Equals, "guide.docx")
	c.Check(list.Entries[0].FileType, qt.Equals, "document")
}

func TestRepository_ListOperationLogs_Filters(t *testing.T) {
	c := qt.New(t)
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	entries := []OperationLogModel{
		{OperationType: OperationCreate, UserID: 1, FileID: uintptr(1), OperationTime: base},
		{OperationType: OperationRead, UserID: 1, FileID: uintptr(1), OperationTime: base.Add(time.Hour)},
		{OperationType: OperationDelete, UserID: 2, FileID: uintptr(2), OperationTime: base.Add(2 * time.Hour)},
	}
	for _, e := range entries {
		e := e
		c.Assert(repo.CreateOperationLog(ctx, &e), qt.IsNil)
	}

	list, err := repo.ListOperationLogs(ctx, ListOperationLogsParams{OperationType: OperationDelete})
	c.Assert(err, qt.IsNil)
	c.Check(list.Total, qt.Equals, int64(1))
	c.Check(list.Entries[0].UserID, qt.Equals, uint(2))

	list, err = repo.ListOperationLogs(ctx, ListOperationLogsParams{UserID: 1})
	c.Assert(err, qt.IsNil)
	c.Check(list.Total, qt.Equals, int64(2))

	since := base.Add(90 * time.Minute)
	list, err = repo.ListOperationLogs(ctx, ListOperationLogsParams{Since: &since})
	c.Assert(err, qt.IsNil)
	c.Check(list.Total, qt.Equals, int64(1))
	c.Check(list.Entries[0].OperationType, qt.Equals, OperationDelete)
}
