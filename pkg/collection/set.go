package collection

import (
	"github.com/ammar0144/bo4go/pkg/bo"
)

// objectSet is an insertion-ordered set of objects keyed by reference
type objectSet[T bo.BusinessObject] struct {
	items   []T
	members map[*bo.Base]struct{}
}

func newObjectSet[T bo.BusinessObject]() *objectSet[T] {
	return &objectSet[T]{members: map[*bo.Base]struct{}{}}
}

func (s *objectSet[T]) has(obj T) bool {
	_, ok := s.members[obj.Core()]
	return ok
}

func (s *objectSet[T]) add(obj T) bool {
	if s.has(obj) {
		return false
	}
	s.members[obj.Core()] = struct{}{}
	s.items = append(s.items, obj)
	return true
}

func (s *objectSet[T]) remove(obj T) bool {
	if !s.has(obj) {
		return false
	}
	delete(s.members, obj.Core())
	for i, item := range s.items {
		if item.Core() == obj.Core() {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

func (s *objectSet[T]) indexOf(obj T) int {
	if !s.has(obj) {
		return -1
	}
	for i, item := range s.items {
		if item.Core() == obj.Core() {
			return i
		}
	}
	return -1
}

func (s *objectSet[T]) len() int {
	return len(s.items)
}

// slice returns a copy safe to iterate while the set changes
func (s *objectSet[T]) slice() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *objectSet[T]) reset(items []T) {
	s.items = nil
	s.members = make(map[*bo.Base]struct{}, len(items))
	for _, obj := range items {
		s.add(obj)
	}
}

func (s *objectSet[T]) clear() {
	s.reset(nil)
}
