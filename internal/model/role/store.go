package role

import "strings"

// Store exposes role lookup for HTTP handlers.
type Store interface {
	List() []Role
	FindByID(id string) (Role, bool)
	FindByTitle(title string) (Role, bool)
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []Role
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied roles.
func NewMemoryStore(items []Role) *MemoryStore {
	return &MemoryStore{items: append([]Role(nil), items...)}
}

// List returns a copy of the catalog.
func (s *MemoryStore) List() []Role {
	return append([]Role(nil), s.items...)
}

// FindByID looks up a role by identifier.
func (s *MemoryStore) FindByID(id string) (Role, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Role{}, false
}

// FindByTitle matches the display title case-insensitively.
func (s *MemoryStore) FindByTitle(title string) (Role, bool) {
	title = strings.TrimSpace(title)
	for _, item := range s.items {
		if strings.EqualFold(item.Title, title) {
			return item, true
		}
	}
	return Role{}, false
}
