package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
)

// CanRead reports whether u may see f. u is nil for anonymous callers.
func CanRead(u *models.User, f *models.File) bool {
	if f.IsPublic {
		return true
	}
	return u != nil && u.ID == f.UserID
}

// CanWrite reports whether u owns f. Nobody else may modify it, whether
// f is public or not.
func CanWrite(u *models.User, f *models.File) bool {
	return u != nil && u.ID == f.UserID
}

// CanCreateChild checks that parentID may hold new entities and returns the
// parent, or nil for the root. The root is open to everyone; any other
// parent must exist and be a folder.
func CanCreateChild(ctx context.Context, repo files.Repository, parentID int64) (*models.File, error) {
	if parentID == common.RootParentID {
		return nil, nil
	}

	parent, err := repo.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidParent
		}
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, common.ErrorParentNotFolder
	}
	return parent, nil
}
