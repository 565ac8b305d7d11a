// Package memstore is an in-memory stand-in for the PostgreSQL repository.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/photovault/photovault/internal/model"
	"github.com/photovault/photovault/internal/repository"
)

// Store keeps users and images in maps. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*model.User
	images map[string]*model.Image

	// LookupErr, when set, fails ImagesByIDs.
	LookupErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:  map[string]*model.User{},
		images: map[string]*model.Image{},
	}
}

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *Store) CreateImage(_ context.Context, img *model.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *img
	s.images[img.ID] = &cp
	return nil
}

func (s *Store) GetImageByID(_ context.Context, id string) (*model.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	cp := *img
	return &cp, nil
}

func (s *Store) ListImagesByOwner(_ context.Context, ownerID string) ([]*model.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*model.Image{}
	for _, img := range s.images {
		if img.OwnerID == ownerID {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) ImagesByIDs(_ context.Context, ownerID string, ids []string) (map[string]*model.Image, error) {
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*model.Image, len(ids))
	for _, id := range ids {
		if img, ok := s.images[id]; ok && img.OwnerID == ownerID {
			cp := *img
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) ListPendingImages(_ context.Context, limit int) ([]*model.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*model.Image{}
	for _, img := range s.images {
		if !img.AIProcessed {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetCaption(_ context.Context, id, caption string, processingTimeMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	img.Caption = &caption
	img.AIProcessingTime = &processingTimeMs
	return nil
}

func (s *Store) MarkIndexed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return repository.ErrImageNotFound
	}
	img.AIProcessed = true
	img.IndexedAt = &at
	return nil
}

func (s *Store) DeleteImage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[id]; !ok {
		return repository.ErrImageNotFound
	}
	delete(s.images, id)
	return nil
}
