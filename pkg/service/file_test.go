package service

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/knowbase/file-backend/pkg/repository"
)

func TestReadOperationsAudited(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	file := ingestDoc(c, env, "report.docx")
	actor := Actor{UserID: 1, IP: "10.0.0.1"}

	_, err := env.svc.GetFile(ctx, actor, file.ID)
	c.Assert(err, qt.IsNil)
	_, _, err = env.svc.ResolveOriginal(ctx, actor, file.ID)
	c.Assert(err, qt.IsNil)
	_, _, err = env.svc.ResolvePDF(ctx, actor, file.ID)
	c.Assert(err, qt.IsNil)
	_, _, err = env.svc.ResolveMarkdown(ctx, actor, file.ID)
	c.Assert(err, qt.IsNil)

	logs, err := env.svc.ListOperationLogs(ctx, repository.ListOperationLogsParams{
		OperationType: repository.OperationRead,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(logs.Entries, qt.HasLen, 4)
	for _, e := range logs.Entries {
		c.Check(e.OperationType, qt.Equals, repository.OperationRead)
		c.Check(e.FileName, qt.Equals, "report.docx")
		c.Check(e.UserID, qt.Equals, uint(1))
		c.Check(e.IPAddress, qt.Equals, "10.0.0.1")
	}
}

func TestReadOfTombstoneNotAudited(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()
	file := ingestDoc(c, env, "report.docx")

	_, err := env.svc.DeleteFiles(ctx, Actor{UserID: 1}, []uint{file.ID}, StrategySoft)
	c.Assert(err, qt.IsNil)
	_, err = env.svc.GetFile(ctx, Actor{UserID: 1}, file.ID)
	c.Assert(err, qt.IsNotNil)

	logs, err := env.svc.ListOperationLogs(ctx, repository.ListOperationLogsParams{
		OperationType: repository.OperationRead,
	})
	c.Assert(err, qt.IsNil)
	c.Check(logs.Entries, qt.HasLen, 0)
}
