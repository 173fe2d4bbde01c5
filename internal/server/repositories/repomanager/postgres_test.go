package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

var (
	_ RepositoryManager = (*PostgresRepositoryManager)(nil)
	_ RepositoryManager = (*MemoryRepositoryManager)(nil)
)

func TestNewPostgresRepositoryManager_LazyOpen(t *testing.T) {
	m, err := NewPostgresRepositoryManager("postgres://nobody@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, m.Ping(ctx), "nothing listens on port 1")
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManagerFromDB(db)

	assert.IsType(t, &users.PostgresRepository{}, m.Users())
	assert.IsType(t, &files.PostgresRepository{}, m.Files())
}

func TestWithUserCache(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManagerFromDB(db).WithUserCache(func(r users.Repository) users.Repository {
		return users.NewCachedRepository(r, 8, time.Minute)
	})
	assert.IsType(t, &users.CachedRepository{}, m.Users())
}

func TestPing(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	m := NewPostgresRepositoryManagerFromDB(db)
	assert.NoError(t, m.Ping(context.Background()))
	assert.Error(t, m.Ping(context.Background()))
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManagerFromDB(db)
	require.NoError(t, m.RunMigrations(context.Background()))
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("bad sql")
	}
	defer func() { gooseUpContext = orig }()

	err := NewPostgresRepositoryManagerFromDB(db).RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations: bad sql")
}

func TestMemoryRepositoryManager(t *testing.T) {
	m := NewMemoryRepositoryManager()
	ctx := context.Background()

	assert.NoError(t, m.Ping(ctx))
	assert.NoError(t, m.RunMigrations(ctx))
	assert.NotNil(t, m.Users())
	assert.NotNil(t, m.Files())
	assert.Same(t, m.MemoryUsers(), m.Users())
	assert.NoError(t, m.Close())
}
