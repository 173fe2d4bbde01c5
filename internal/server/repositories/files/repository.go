// Package files stores folder, file and image metadata.
package files

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// Create inserts file and fills in its ID.
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id int64) (*models.File, error)
	// GetByIDAndOwner returns common.ErrorNotFound unless id exists and
	// belongs to userID.
	GetByIDAndOwner(ctx context.Context, id, userID int64) (*models.File, error)
	// ListByParent returns children of parentID ordered by id.
	ListByParent(ctx context.Context, parentID int64, limit, offset int) ([]*models.File, error)
	// Update applies patch atomically and returns the updated record.
	Update(ctx context.Context, id int64, patch models.FilePatch) (*models.File, error)
	Count(ctx context.Context) (int64, error)
}
