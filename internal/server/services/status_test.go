package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/filevault/internal/server/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downSessions struct {
	sessions.Store
}

func (downSessions) Ping(context.Context) error { return errBoom{} }

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var observed []Status
	s := NewStatusService(f.repos, f.sessions)
	s.Observe(func(st Status) { observed = append(observed, st) })

	st := s.Status(ctx)
	assert.Equal(t, Status{Redis: true, DB: true}, st)
	assert.True(t, st.Alive())

	down := NewStatusService(f.repos, downSessions{f.sessions})
	st = down.Status(ctx)
	assert.Equal(t, Status{Redis: false, DB: true}, st)
	assert.False(t, st.Alive())

	require.Len(t, observed, 1)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice@x.com", "pw1")
	f.register(t, "bob@x.com", "pw2")
	f.upload(t, u, UploadRequest{Name: "docs", Type: "folder"})

	got, err := NewStatusService(f.repos, f.sessions).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 2, Files: 1}, got)
}
