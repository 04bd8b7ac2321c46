package main

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	errNotFound  = errors.New("item not found")
	errNameTaken = errors.New("item name taken")
)

// Store keeps items in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Item
	order []uuid.UUID
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		items: make(map[uuid.UUID]Item),
		now:   time.Now,
	}
}

// Create adds an item with a fresh ID.
func (s *Store) Create(in NewItem) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(in.Name, uuid.Nil) {
		return Item{}, errNameTaken
	}

	now := s.now().UTC()
	item := Item{
		ID:        uuid.New(),
		Name:      in.Name,
		Tags:      slices.Clone(in.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	return item, nil
}

// Get returns the item with the given ID.
func (s *Store) Get(id uuid.UUID) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, errNotFound
	}
	return item, nil
}

// List returns items in creation order, filtered by tag when tag is not
// empty, along with the number of items matching the filter.
func (s *Store) List(tag string, offset, limit int) ([]Item, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Item
	for _, id := range s.order {
		item := s.items[id]
		if tag != "" && !slices.Contains(item.Tags, tag) {
			continue
		}
		matched = append(matched, item)
	}

	total := len(matched)
	if offset >= total {
		return []Item{}, total
	}
	end := min(offset+limit, total)
	return slices.Clone(matched[offset:end]), total
}

// Update replaces the writable fields of an item.
func (s *Store) Update(id uuid.UUID, in NewItem) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, errNotFound
	}
	if s.nameTaken(in.Name, id) {
		return Item{}, errNameTaken
	}

	item.Name = in.Name
	item.Tags = slices.Clone(in.Tags)
	item.UpdatedAt = s.now().UTC()
	s.items[id] = item
	return item, nil
}

// Delete removes an item.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return errNotFound
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(o uuid.UUID) bool { return o == id })
	return nil
}

// nameTaken reports whether another item than self uses name. Callers hold
// the lock.
func (s *Store) nameTaken(name string, self uuid.UUID) bool {
	for id, item := range s.items {
		if id != self && item.Name == name {
			return true
		}
	}
	return false
}
