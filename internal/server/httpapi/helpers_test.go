package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/cryptox"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/dmitrijs2005/filevault/internal/server/sessions"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

const testMaxBody = 1 << 20

type testServer struct {
	*httptest.Server
	repos    *repomanager.MemoryRepositoryManager
	sessions *sessions.MemoryStore
	blobs    *blobstore.MemoryStore
	broker   *queue.MemoryBroker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		repos:    repomanager.NewMemoryRepositoryManager(),
		sessions: sessions.NewMemoryStore(),
		blobs:    blobstore.NewMemoryStore(),
		broker: queue.NewMemoryBroker(queue.RetryPolicy{
			MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond,
		}, nopLogger{}),
	}
	hasher := cryptox.NewArgon2Hasher(cryptox.Params{Time: 1, Memory: 1024, Threads: 1})

	h := NewHandler(
		services.NewAuthService(ts.repos.Users(), ts.sessions, hasher, ts.broker, 24*time.Hour, nopLogger{}),
		services.NewFileService(ts.repos.Files(), ts.blobs, ts.broker, 20, nopLogger{}),
		services.NewStatusService(ts.repos, ts.sessions),
		testMaxBody,
		nopLogger{},
	)
	ts.Server = httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(func() {
		ts.Close()
		_ = ts.broker.Close()
	})
	return ts
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) json(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), "body: %s", r.body)
}

func (r response) errorMessage(t *testing.T) string {
	t.Helper()
	var e errorResponse
	r.json(t, &e)
	return e.Error
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, header: resp.Header, body: b}
}

func withToken(token string) map[string]string {
	return map[string]string{"X-Token": token}
}

func basicAuth(email, password string) map[string]string {
	return map[string]string{
		"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password)),
	}
}

// signup registers and connects a user, returning its token.
func (ts *testServer) signup(t *testing.T, email, password string) string {
	t.Helper()
	r := ts.do(t, http.MethodPost, "/users", map[string]string{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusCreated, r.status, "register: %s", r.body)

	r = ts.do(t, http.MethodGet, "/connect", nil, basicAuth(email, password))
	require.Equal(t, http.StatusOK, r.status, "connect: %s", r.body)
	var out struct {
		Token string `json:"token"`
	}
	r.json(t, &out)
	return out.Token
}

func (ts *testServer) upload(t *testing.T, token string, body map[string]any) fileResponse {
	t.Helper()
	r := ts.do(t, http.MethodPost, "/files", body, withToken(token))
	require.Equal(t, http.StatusCreated, r.status, "upload: %s", r.body)
	var f fileResponse
	r.json(t, &f)
	return f
}
