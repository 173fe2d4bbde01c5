package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

const fileColumns = `id, user_id, name, type, is_public, parent_id, storage_key, created_at`

// PostgresRepository implements file metadata storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (user_id, name, type, is_public, parent_id, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		file.UserID, file.Name, string(file.Type), file.IsPublic, file.ParentID, file.StorageKey,
	).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByIDAndOwner(ctx context.Context, id, userID int64) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND user_id = $2`
	return scanFile(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *PostgresRepository) ListByParent(ctx context.Context, parentID int64, limit, offset int) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE parent_id = $1 ORDER BY id LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, parentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	result := make([]*models.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Update sets the non-nil fields of patch in one statement, so concurrent
// publish/unpublish calls on the same record serialize in the database.
func (r *PostgresRepository) Update(ctx context.Context, id int64, patch models.FilePatch) (*models.File, error) {
	if patch.IsPublic == nil {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE files SET is_public = $2 WHERE id = $1 RETURNING ` + fileColumns
	return scanFile(r.db.QueryRowContext(ctx, query, id, *patch.IsPublic))
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*models.File, error) {
	var (
		f    models.File
		kind string
	)
	err := row.Scan(&f.ID, &f.UserID, &f.Name, &kind, &f.IsPublic, &f.ParentID, &f.StorageKey, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	f.Type = models.FileType(kind)
	return &f, nil
}
