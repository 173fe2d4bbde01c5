package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fileCols = []string{"id", "user_id", "name", "type", "is_public", "parent_id", "storage_key", "created_at"}

const (
	insertQ  = `(?s)^INSERT\s+INTO\s+files\s*\(user_id,\s*name,\s*type,\s*is_public,\s*parent_id,\s*storage_key\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*created_at$`
	byIDQ    = `^SELECT id, user_id, name, type, is_public, parent_id, storage_key, created_at FROM files WHERE id = \$1$`
	byOwnerQ = `^SELECT .* FROM files WHERE id = \$1 AND user_id = \$2$`
	listQ    = `^SELECT .* FROM files WHERE parent_id = \$1 ORDER BY id LIMIT \$2 OFFSET \$3$`
	updateQ  = `^UPDATE files SET is_public = \$2 WHERE id = \$1 RETURNING id, user_id, name, type, is_public, parent_id, storage_key, created_at$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs(int64(1), "photo.png", "image", true, int64(0), "users/2026/10/14/abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))

	f, err := repo.Create(context.Background(), &models.File{
		UserID: 1, Name: "photo.png", Type: models.FileTypeImage, IsPublic: true, StorageKey: "users/2026/10/14/abc",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), f.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.File{UserID: 1, Name: "docs", Type: models.FileTypeFolder})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(fileCols).AddRow(int64(5), int64(1), "docs", "folder", false, int64(0), "", time.Now()))
	mock.ExpectQuery(byIDQ).WithArgs(int64(6)).WillReturnError(sql.ErrNoRows)

	f, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.FileTypeFolder, f.Type)
	assert.True(t, f.IsFolder())

	_, err = repo.GetByID(context.Background(), 6)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByIDAndOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byOwnerQ).WithArgs(int64(5), int64(2)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDAndOwner(context.Background(), 5, 2)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByParent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(listQ).WithArgs(int64(5), 20, 40).
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow(int64(6), int64(1), "a.txt", "file", false, int64(5), "k1", now).
			AddRow(int64(7), int64(2), "b.png", "image", true, int64(5), "k2", now))

	got, err := repo.ListByParent(context.Background(), 5, 20, 40)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0].Name)
	assert.Equal(t, models.FileTypeImage, got[1].Type)
}

func TestListByParent_EmptyIsNotNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(listQ).WithArgs(int64(0), 20, 0).WillReturnRows(sqlmock.NewRows(fileCols))

	got, err := repo.ListByParent(context.Background(), 0, 20, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByParent_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(listQ).WillReturnError(errors.New("boom"))

	_, err := repo.ListByParent(context.Background(), 0, 20, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select files")
}

func TestUpdate_SetsIsPublic(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(updateQ).WithArgs(int64(6), true).
		WillReturnRows(sqlmock.NewRows(fileCols).AddRow(int64(6), int64(1), "a.txt", "file", true, int64(0), "k1", time.Now()))

	pub := true
	f, err := repo.Update(context.Background(), 6, models.FilePatch{IsPublic: &pub})
	require.NoError(t, err)
	assert.True(t, f.IsPublic)
}

func TestUpdate_MissingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(updateQ).WithArgs(int64(99), false).WillReturnError(sql.ErrNoRows)

	pub := false
	_, err := repo.Update(context.Background(), 99, models.FilePatch{IsPublic: &pub})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_EmptyPatchReads(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(byIDQ).WithArgs(int64(6)).
		WillReturnRows(sqlmock.NewRows(fileCols).AddRow(int64(6), int64(1), "a.txt", "file", false, int64(0), "k1", time.Now()))

	f, err := repo.Update(context.Background(), 6, models.FilePatch{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM files$`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
