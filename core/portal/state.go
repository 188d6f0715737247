package portal

import (
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

// State is the local copy of the school data.
type State struct {
	Settings      school.Settings
	ClassGroups   []school.ClassGroup
	Users         []user.User
	Announcements []school.Announcement
	Exams         []school.Exam
	Polls         []school.Poll
	Resources     []school.Resource
}

// Clone returns a copy of the state that shares no mutable memory with it.
func (s State) Clone() State {
	return State{
		Settings:      s.Settings,
		ClassGroups:   cloneSlice(s.ClassGroups),
		Users:         cloneSlice(s.Users),
		Announcements: cloneSlice(s.Announcements),
		Exams:         cloneSlice(s.Exams),
		Polls:         clonePolls(s.Polls),
		Resources:     cloneSlice(s.Resources),
	}
}

type identifiable interface {
	ItemID() string
}

// cloneSlice copies items whose pointer fields are never written through.
func cloneSlice[T any](items []T) []T {
	return append(make([]T, 0, len(items)), items...)
}

func clonePolls(polls []school.Poll) []school.Poll {
	clone := make([]school.Poll, 0, len(polls))
	for _, p := range polls {
		clone = append(clone, p.Clone())
	}
	return clone
}

func indexByID[T identifiable](items []T, id string) int {
	for i, item := range items {
		if item.ItemID() == id {
			return i
		}
	}
	return -1
}

func findByID[T identifiable](items []T, id string) (T, bool) {
	if idx := indexByID(items, id); idx >= 0 {
		return items[idx], true
	}
	var zero T
	return zero, false
}

// withoutID returns a new slice without the item `id`.
func withoutID[T identifiable](items []T, id string) []T {
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if item.ItemID() != id {
			kept = append(kept, item)
		}
	}
	return kept
}

// replaceAt returns a new slice where the item at `idx` is `item`.
func replaceAt[T any](items []T, idx int, item T) []T {
	next := cloneSlice(items)
	next[idx] = item
	return next
}

// insertAt returns a new slice with `item` at `idx`, or last when `idx` is past the end.
func insertAt[T any](items []T, idx int, item T) []T {
	if idx > len(items) {
		idx = len(items)
	}
	next := make([]T, 0, len(items)+1)
	next = append(next, items[:idx]...)
	next = append(next, item)
	return append(next, items[idx:]...)
}

type removedItem[T any] struct {
	idx  int
	item T
}

// removeWhere returns a new slice without the items matching `drop`, and the removed items with
// their positions, in order.
func removeWhere[T any](items []T, drop func(T) bool) ([]T, []removedItem[T]) {
	kept := make([]T, 0, len(items))
	var removed []removedItem[T]
	for i, item := range items {
		if drop(item) {
			removed = append(removed, removedItem[T]{idx: i, item: item})
			continue
		}
		kept = append(kept, item)
	}
	return kept, removed
}

// restoreRemoved puts removed items back, in their original order.
func restoreRemoved[T identifiable](items *[]T, removed []removedItem[T]) {
	for _, r := range removed {
		restoreLocal(items, r.idx, r.item)
	}
}

// prepend returns a new slice starting with `item`.
func prepend[T any](items []T, item T) []T {
	return append([]T{item}, items...)
}
