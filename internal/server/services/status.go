package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/sessions"
)

// Status is the liveness of the session and metadata stores.
type Status struct {
	Redis bool `json:"redis"`
	DB    bool `json:"db"`
}

// Alive reports whether every store answered.
func (s Status) Alive() bool {
	return s.Redis && s.DB
}

// Stats holds entity counts.
type Stats struct {
	Users int64 `json:"users"`
	Files int64 `json:"files"`
}

type StatusService struct {
	repos    repomanager.RepositoryManager
	sessions sessions.Store

	mu        sync.Mutex
	observers []func(Status)
}

func NewStatusService(rm repomanager.RepositoryManager, s sessions.Store) *StatusService {
	return &StatusService{repos: rm, sessions: s}
}

// Observe registers fn to receive every computed Status.
func (s *StatusService) Observe(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *StatusService) Status(ctx context.Context) Status {
	st := Status{
		Redis: s.sessions.Ping(ctx) == nil,
		DB:    s.repos.Ping(ctx) == nil,
	}

	s.mu.Lock()
	obs := append(([]func(Status))(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range obs {
		fn(st)
	}
	return st
}

func (s *StatusService) Stats(ctx context.Context) (Stats, error) {
	nu, err := s.repos.Users().Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	nf, err := s.repos.Files().Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count files: %w", err)
	}
	return Stats{Users: nu, Files: nf}, nil
}
