package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fv_user_cache_hits_total",
		Help: "Lookups of users by id served from the LRU cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fv_user_cache_misses_total",
		Help: "Lookups of users by id that went to the repository.",
	})
)

// CachedRepository fronts a Repository with an expiring LRU for GetByID,
// which every authenticated request performs. Users are immutable, so the
// only staleness is a deleted user surviving until its entry expires.
type CachedRepository struct {
	Repository
	cache *expirable.LRU[int64, *models.User]
}

func NewCachedRepository(next Repository, size int, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: next,
		cache:      expirable.NewLRU[int64, *models.User](size, nil, ttl),
	}
}

func (r *CachedRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := r.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		c := *u
		return &c, nil
	}
	cacheMissesTotal.Inc()

	u, err := r.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *u
	r.cache.Add(id, &c)
	return u, nil
}
