package services

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/sessions"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// recordingBroker keeps published payloads and can be made to fail.
type recordingBroker struct {
	published map[string][][]byte
	err       error
}

func newRecordingBroker() *recordingBroker {
	return &recordingBroker{published: map[string][][]byte{}}
}

func (b *recordingBroker) Publish(_ context.Context, q string, payload []byte) error {
	if b.err != nil {
		return b.err
	}
	b.published[q] = append(b.published[q], payload)
	return nil
}
func (b *recordingBroker) Consume(context.Context, string, queue.Handler) error { return nil }
func (b *recordingBroker) Ping(context.Context) error                         { return b.err }
func (b *recordingBroker) Close() error                                       { return nil }

var fastHasher = cryptox.NewArgon2Hasher(cryptox.Params{Time: 1, Memory: 1024, Threads: 1})

type fixture struct {
	repos    *repomanager.MemoryRepositoryManager
	sessions *sessions.MemoryStore
	blobs    *blobstore.MemoryStore
	broker   *recordingBroker
	auth     *AuthService
	files    *FileService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos:  repomanager.NewMemoryRepositoryManager(),
		blobs:  blobstore.NewMemoryStore(),
		broker: newRecordingBroker(),
		now:    time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC),
	}
	f.sessions = sessions.NewMemoryStore().WithClock(func() time.Time { return f.now })
	f.auth = NewAuthService(f.repos.Users(), f.sessions, fastHasher, f.broker, 24*time.Hour, nopLogger{})
	f.files = NewFileService(f.repos.Files(), f.blobs, f.broker, 2, nopLogger{})
	return f
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return u
}

func basic(email, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + password))
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func isBoom(err error) bool {
	var b errBoom
	return errors.As(err, &b)
}
