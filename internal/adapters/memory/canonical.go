package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

// CanonicalStore - unified_houses; записи хранятся сериализованными, как в JSONB
type CanonicalStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	order []string
}

var _ port.CanonicalStorePort = (*CanonicalStore)(nil)

func NewCanonicalStore() *CanonicalStore {
	return &CanonicalStore{docs: make(map[string][]byte)}
}

func (s *CanonicalStore) Insert(_ context.Context, rec *domain.CanonicalRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("memory store: canonical record without id")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory store: encode canonical %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[rec.ID]; exists {
		return fmt.Errorf("memory store: canonical %s already exists", rec.ID)
	}
	s.docs[rec.ID] = body
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *CanonicalStore) Get(_ context.Context, id string) (*domain.CanonicalRecord, error) {
	s.mu.RLock()
	body, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return decode(body)
}

func (s *CanonicalStore) Replace(_ context.Context, rec *domain.CanonicalRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory store: encode canonical %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[rec.ID]; !ok {
		return notFound(rec.ID)
	}
	s.docs[rec.ID] = body
	return nil
}

func (s *CanonicalStore) UpdateFields(_ context.Context, id string, set map[string]any) (*domain.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.docs[id]
	if !ok {
		return nil, notFound(id)
	}
	current, err := decode(body)
	if err != nil {
		return nil, err
	}
	updated, err := domain.ApplyPaths(current, set)
	if err != nil {
		return nil, err
	}
	if body, err = json.Marshal(updated); err != nil {
		return nil, fmt.Errorf("memory store: encode canonical %s: %w", id, err)
	}
	s.docs[id] = body
	return updated, nil
}

func (s *CanonicalStore) ForEach(ctx context.Context, fn func(*domain.CanonicalRecord) error) error {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *CanonicalStore) FindNear(ctx context.Context, lat, lon float64, limit int) ([]*domain.CanonicalRecord, error) {
	center := domain.Coordinates{Lat: lat, Lon: lon}
	cells := domain.NearbyCells(center)

	var found []*domain.CanonicalRecord
	err := s.ForEach(ctx, func(rec *domain.CanonicalRecord) error {
		if rec.Coordinates == nil {
			return nil
		}
		hash := domain.Geohash(*rec.Coordinates)
		for _, cell := range cells {
			if strings.HasPrefix(hash, cell) {
				found = append(found, rec)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(found, func(i, j int) bool {
		return domain.DistanceMeters(center, *found[i].Coordinates) < domain.DistanceMeters(center, *found[j].Coordinates)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (s *CanonicalStore) ReferencedSourceIDs(ctx context.Context, kind domain.SourceKind) (map[string]string, error) {
	refs := make(map[string]string)
	err := s.ForEach(ctx, func(rec *domain.CanonicalRecord) error {
		if id := rec.SourceIDs.Get(kind); id != "" {
			refs[id] = rec.ID
		}
		return nil
	})
	return refs, err
}

// Len - число записей unified_houses
func (s *CanonicalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func decode(body []byte) (*domain.CanonicalRecord, error) {
	var rec domain.CanonicalRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("memory store: decode canonical: %w", err)
	}
	return &rec, nil
}

func notFound(id string) error {
	return domain.NewError(domain.ErrorKindCanonicalNotFound, "get canonical", fmt.Sprintf("unified record %s not found", id)).
		WithField("id", id)
}
