package files

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// MemoryRepository keeps file metadata in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]models.File
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]models.File)}
}

func (r *MemoryRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	file.ID = r.nextID
	file.CreatedAt = time.Now()
	r.byID[file.ID] = *file

	return file, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &f, nil
}

func (r *MemoryRepository) GetByIDAndOwner(ctx context.Context, id, userID int64) (*models.File, error) {
	f, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return f, nil
}

func (r *MemoryRepository) ListByParent(ctx context.Context, parentID int64, limit, offset int) ([]*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	children := make([]*models.File, 0)
	for _, f := range r.byID {
		if f.ParentID == parentID {
			c := f
			children = append(children, &c)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })

	if offset >= len(children) {
		return []*models.File{}, nil
	}
	children = children[offset:]
	if limit >= 0 && limit < len(children) {
		children = children[:limit]
	}
	return children, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id int64, patch models.FilePatch) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if patch.IsPublic != nil {
		f.IsPublic = *patch.IsPublic
	}
	r.byID[id] = f
	return &f, nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byID)), nil
}
