package service

import (
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/golang-jwt/jwt/v5"

	errdomain "github.com/knowbase/file-backend/pkg/errors"
	"github.com/knowbase/file-backend/pkg/repository"
)

func TestLogin(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	created, err := env.svc.CreateUser(ctx, "alice", "s3cret")
	c.Assert(err, qt.IsNil)
	c.Check(created.Username, qt.Equals, "alice")
	// The stored hash never equals the plaintext.
	c.Check(created.PasswordHash, qt.Not(qt.Equals), "s3cret")

	token, user, err := env.svc.Login(ctx, "alice", "s3cret")
	c.Assert(err, qt.IsNil)
	c.Check(user.ID, qt.Equals, created.ID)

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	c.Assert(err, qt.IsNil)
	claims := parsed.Claims.(jwt.MapClaims)
	c.Check(claims["sub"], qt.Equals, "1")
	c.Check(claims["username"], qt.Equals, "alice")
	c.Check(claims["exp"], qt.IsNotNil)
}

func TestLogin_BadCredentials(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	_, err := env.svc.CreateUser(ctx, "alice", "s3cret")
	c.Assert(err, qt.IsNil)

	_, _, err = env.svc.Login(ctx, "alice", "wrong")
	c.Check(err, qt.ErrorIs, errdomain.ErrUnauthenticated)

	_, _, err = env.svc.Login(ctx, "nobody", "s3cret")
	c.Check(err, qt.ErrorIs, errdomain.ErrUnauthenticated)
}

func TestCreateUser_Validation(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	_, err := env.svc.CreateUser(context.Background(), "", "pw")
	c.Check(err, qt.ErrorIs, errdomain.ErrInvalidArgument)
	_, err = env.svc.CreateUser(context.Background(), "bob", "")
	c.Check(err, qt.ErrorIs, errdomain.ErrInvalidArgument)
}

func TestExportOperationLogsCSV(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	_ = ingestSimple(c, env, "photo.png", TypeImage, "img")
	_ = ingestSimple(c, env, "chart, v2.png", TypeImage, "img")

	var buf strings.Builder
	err := env.svc.ExportOperationLogsCSV(ctx, repository.ListOperationLogsParams{}, &buf)
	c.Assert(err, qt.IsNil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	c.Assert(lines, qt.HasLen, 3)
	c.Check(lines[0], qt.Contains, "operation_type")
	// The comma inside the filename is quoted, not split.
	c.Check(buf.String(), qt.Contains, `"chart, v2.png"`)
}
