package schedule

import (
	"context"
	"sort"
	"sync"

	"github.com/balejosg/openpath/internal/model"
)

// MemoryStore holds reservations in process memory. Conflict checks and
// writes run under one mutex, so the check-then-write is atomic by
// construction. Used by tests; production runs on PostgresStore.
type MemoryStore struct {
	mu           sync.Mutex
	reservations map[string]model.Reservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reservations: make(map[string]model.Reservation)}
}

func (s *MemoryStore) Insert(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conflict := FindConflict(s.sameWindow(r.ClassroomID, r.DayOfWeek), r.StartTime, r.EndTime, ""); conflict != nil {
		return &ConflictError{Conflict: *conflict}
	}
	s.reservations[r.ID] = r
	return nil
}

func (s *MemoryStore) Update(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reservations[r.ID]; !ok {
		return ErrNotFound
	}
	if conflict := FindConflict(s.sameWindow(r.ClassroomID, r.DayOfWeek), r.StartTime, r.EndTime, r.ID); conflict != nil {
		return &ConflictError{Conflict: *conflict}
	}
	s.reservations[r.ID] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reservation, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, ErrNotFound
	}
	return reservation, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reservations[id]
	delete(s.reservations, id)
	return ok, nil
}

func (s *MemoryStore) ListClassroom(_ context.Context, classroomID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.ClassroomID == classroomID {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *MemoryStore) ListClassroomDay(_ context.Context, classroomID string, day int) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sameWindow(classroomID, day)
	sortReservations(out)
	return out, nil
}

func (s *MemoryStore) ActiveReservation(_ context.Context, classroomID string, day int, clock string) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.sameWindow(classroomID, day) {
		if r.StartTime <= clock && clock < r.EndTime {
			match := r
			return &match, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) sameWindow(classroomID string, day int) []model.Reservation {
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.ClassroomID == classroomID && r.DayOfWeek == day {
			out = append(out, r)
		}
	}
	return out
}

func sortReservations(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].DayOfWeek != rs[j].DayOfWeek {
			return rs[i].DayOfWeek < rs[j].DayOfWeek
		}
		return rs[i].StartTime < rs[j].StartTime
	})
}
