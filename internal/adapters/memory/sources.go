// Package memory - хранилище в памяти с той же семантикой, что и postgres-адаптер.
// Используется в тестах и для сухих прогонов драйверов.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

type sourceEntry struct {
	rec   *domain.SourceRecord
	order int
}

// SourceStore - три коллекции источников
type SourceStore struct {
	mu sync.RWMutex

	sources map[domain.SourceKind]map[string]*sourceEntry
	seq     int

	// lifecycleFaults - ошибки, которые UpdateLifecycle вернет для (вид, id)
	lifecycleFaults map[string]error
}

var _ port.SourceStorePort = (*SourceStore)(nil)

func NewSourceStore() *SourceStore {
	s := &SourceStore{
		sources:         make(map[domain.SourceKind]map[string]*sourceEntry),
		lifecycleFaults: make(map[string]error),
	}
	for _, kind := range domain.AllSourceKinds {
		s.sources[kind] = make(map[string]*sourceEntry)
	}
	return s
}

// PutSource добавляет или заменяет запись источника (фикстуры, загрузка дампа)
func (s *SourceStore) PutSource(rec *domain.SourceRecord) error {
	if rec == nil || !rec.Kind.Valid() || rec.ID == "" {
		return fmt.Errorf("memory store: source record needs a valid kind and id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sources[rec.Kind][rec.ID]
	if !ok {
		s.seq++
		entry = &sourceEntry{order: s.seq}
		s.sources[rec.Kind][rec.ID] = entry
	}
	cp := *rec
	entry.rec = &cp
	return nil
}

// FailLifecycleUpdates заставляет UpdateLifecycle падать для записи; nil снимает ошибку
func (s *SourceStore) FailLifecycleUpdates(kind domain.SourceKind, id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(kind) + "/" + id
	if err == nil {
		delete(s.lifecycleFaults, key)
		return
	}
	s.lifecycleFaults[key] = err
}

func (s *SourceStore) Get(_ context.Context, kind domain.SourceKind, id string) (*domain.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sources[kind][id]
	if !ok {
		return nil, domain.NewError(domain.ErrorKindSourceNotFound, "get source", fmt.Sprintf("%s record %s not found", kind, id)).
			WithField("kind", string(kind)).WithField("id", id)
	}
	cp := *entry.rec
	return &cp, nil
}

func (s *SourceStore) ListAvailable(_ context.Context, kind domain.SourceKind, q domain.SourceQuery) ([]*domain.SourceRecord, error) {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	return s.filter(kind, q.Limit, func(rec *domain.SourceRecord) bool {
		if q.ExcludeFuture && rec.Lifecycle.FutureProjectID != nil {
			return false
		}
		return search == "" || strings.Contains(strings.ToLower(rec.DisplayName()), search)
	}), nil
}

func (s *SourceStore) FindByNormalizedName(_ context.Context, kind domain.SourceKind, normalized string) ([]*domain.SourceRecord, error) {
	if normalized == "" {
		return nil, nil
	}
	return s.filter(kind, 0, func(rec *domain.SourceRecord) bool {
		return rec.NormalizedName == normalized
	}), nil
}

func (s *SourceStore) FindByNormalizedPattern(_ context.Context, kind domain.SourceKind, pattern string) ([]*domain.SourceRecord, error) {
	re, err := compilePattern(pattern)
	if err != nil || re == nil {
		return nil, err
	}
	return s.filter(kind, 0, func(rec *domain.SourceRecord) bool {
		return rec.NormalizedName != "" && re.MatchString(rec.NormalizedName)
	}), nil
}

func (s *SourceStore) FindByDisplayPattern(_ context.Context, kind domain.SourceKind, pattern string) ([]*domain.SourceRecord, error) {
	re, err := compilePattern(pattern)
	if err != nil || re == nil {
		return nil, err
	}
	return s.filter(kind, 0, func(rec *domain.SourceRecord) bool {
		return re.MatchString(rec.DisplayName())
	}), nil
}

// compilePattern повторяет ~* PostgreSQL: поиск подстроки без учета регистра
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("memory store: invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// filter отдает доступные записи в порядке добавления
func (s *SourceStore) filter(kind domain.SourceKind, limit int, keep func(*domain.SourceRecord) bool) []*domain.SourceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*sourceEntry, 0, len(s.sources[kind]))
	for _, e := range s.sources[kind] {
		if e.rec.Lifecycle.Available() && keep(e.rec) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	out := make([]*domain.SourceRecord, 0, len(entries))
	for _, e := range entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *e.rec
		out = append(out, &cp)
	}
	return out
}

func (s *SourceStore) UpdateLifecycle(_ context.Context, kind domain.SourceKind, id string, mutate func(*domain.SourceLifecycle)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.lifecycleFaults[string(kind)+"/"+id]; ok {
		return err
	}
	entry, ok := s.sources[kind][id]
	if !ok {
		return domain.NewError(domain.ErrorKindSourceNotFound, "update lifecycle", fmt.Sprintf("%s record %s not found", kind, id))
	}
	cp := *entry.rec
	mutate(&cp.Lifecycle)
	entry.rec = &cp
	return nil
}

var _ port.NormalizedNameStorePort = (*SourceStore)(nil)

func (s *SourceStore) ScanNames(ctx context.Context, kind domain.SourceKind, fn func(id, displayName, normalized string) error) error {
	s.mu.RLock()
	entries := make([]sourceEntry, 0, len(s.sources[kind]))
	for _, e := range s.sources[kind] {
		entries = append(entries, *e)
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e.rec.ID, e.rec.DisplayName(), e.rec.NormalizedName); err != nil {
			return err
		}
	}
	return nil
}

func (s *SourceStore) SetNormalizedNames(_ context.Context, kind domain.SourceKind, names map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, normalized := range names {
		entry, ok := s.sources[kind][id]
		if !ok || entry.rec.NormalizedName == normalized {
			continue
		}
		cp := *entry.rec
		cp.NormalizedName = normalized
		entry.rec = &cp
		changed++
	}
	return changed, nil
}
