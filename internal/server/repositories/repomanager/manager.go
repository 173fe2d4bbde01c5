// Package repomanager owns the metadata store connection and vends the
// repositories bound to it.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
)

type RepositoryManager interface {
	Users() users.Repository
	Files() files.Repository
	// Ping reports whether the underlying store is reachable.
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context) error
	Close() error
}
