package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/blobstore"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/queue"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
)

// UploadRequest is a parsed POST /files body. Data is base64 encoded.
type UploadRequest struct {
	Name     string
	Type     string
	ParentID int64
	IsPublic bool
	Data     string
}

// FileService implements the upload pipeline and every read or publish
// operation on file entities.
type FileService struct {
	files    files.Repository
	blobs    blobstore.Store
	broker   queue.Broker
	pageSize int
	logger   logging.Logger
}

func NewFileService(f files.Repository, b blobstore.Store, q queue.Broker, pageSize int, l logging.Logger) *FileService {
	return &FileService{
		files:    f,
		blobs:    b,
		broker:   q,
		pageSize: pageSize,
		logger:   l.With("module", "file_service"),
	}
}

// Upload validates req, stores its bytes and then its metadata, and for
// images publishes a ThumbnailJob. The blob is written before the record so
// that no record ever points at missing bytes; a failed insert deletes the
// blob again.
func (s *FileService) Upload(ctx context.Context, u *models.User, req UploadRequest) (*models.File, error) {
	if req.Name == "" {
		return nil, common.NewMissingFieldError("name")
	}
	kind := models.FileType(req.Type)
	if !kind.Valid() {
		return nil, common.NewMissingFieldError("type")
	}
	if kind.HasContent() && req.Data == "" {
		return nil, common.NewMissingFieldError("data")
	}

	if _, err := CanCreateChild(ctx, s.files, req.ParentID); err != nil {
		return nil, err
	}

	f := &models.File{
		UserID:   u.ID,
		Name:     req.Name,
		Type:     kind,
		IsPublic: req.IsPublic,
		ParentID: req.ParentID,
	}

	if !kind.HasContent() {
		return s.files.Create(ctx, f)
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil || len(data) == 0 {
		return nil, common.NewMissingFieldError("data")
	}

	f.StorageKey = blobstore.NewStorageKey()
	if err := s.blobs.Create(ctx, f.StorageKey, data); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}

	created, err := s.files.Create(ctx, f)
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), f.StorageKey); derr != nil {
			s.logger.Error(ctx, "remove orphan blob", "key", f.StorageKey, "error", derr)
		}
		return nil, err
	}

	if created.Type == models.FileTypeImage {
		job := models.ThumbnailJob{FileID: created.ID, UserID: created.UserID}
		if err := queue.PublishJSON(ctx, s.broker, queue.FileQueue, job); err != nil {
			s.logger.Error(ctx, "publish thumbnail job", "file_id", created.ID, "error", err)
		}
	}

	s.logger.Info(ctx, "file uploaded", "file_id", created.ID, "type", created.Type, "user_id", u.ID)
	return created, nil
}

// Get returns a single entity's metadata.
func (s *FileService) Get(ctx context.Context, u *models.User, id int64) (*models.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanRead(u, f) {
		return nil, common.ErrorForbidden
	}
	return f, nil
}

// List returns one page of parentID's children that u can see. A parent
// that does not exist, or is not a folder, has no children; a parent that
// exists but is hidden from u is forbidden.
func (s *FileService) List(ctx context.Context, u *models.User, parentID int64, page int) ([]*models.File, error) {
	if page < 0 {
		page = 0
	}

	if parentID != common.RootParentID {
		parent, err := s.files.GetByID(ctx, parentID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return []*models.File{}, nil
			}
			return nil, err
		}
		if !CanRead(u, parent) {
			return nil, common.ErrorForbidden
		}
		if !parent.IsFolder() {
			return []*models.File{}, nil
		}
	}

	children, err := s.files.ListByParent(ctx, parentID, s.pageSize, page*s.pageSize)
	if err != nil {
		return nil, err
	}

	out := make([]*models.File, 0, len(children))
	for _, f := range children {
		if CanRead(u, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Publish makes id readable by everyone.
func (s *FileService) Publish(ctx context.Context, u *models.User, id int64) (*models.File, error) {
	return s.setPublic(ctx, u, id, true)
}

// Unpublish restricts id to its owner.
func (s *FileService) Unpublish(ctx context.Context, u *models.User, id int64) (*models.File, error) {
	return s.setPublic(ctx, u, id, false)
}

func (s *FileService) setPublic(ctx context.Context, u *models.User, id int64, public bool) (*models.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanWrite(u, f) {
		return nil, common.ErrorForbidden
	}
	return s.files.Update(ctx, id, models.FilePatch{IsPublic: &public})
}

// Data returns the bytes of id, or of its derivative when size is set.
// Anything u may not read is reported as common.ErrorNotFound so private
// entities cannot be probed.
func (s *FileService) Data(ctx context.Context, u *models.User, id int64, size string) ([]byte, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.IsFolder() || !CanRead(u, f) {
		return nil, common.ErrorNotFound
	}

	key := f.StorageKey
	if size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || !slices.Contains(models.ThumbnailSizes, n) {
			return nil, common.ErrorInvalidSize
		}
		key = blobstore.DerivativeKey(key, n)
	}

	return s.blobs.Get(ctx, key)
}
