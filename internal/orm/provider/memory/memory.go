// Package memory provides a thread-safe in-memory provider implementing every
// capability of the provider contract. It backs the CLI's seeded entities
// and the package tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// Calls counts invocations per contract method
type Calls map[string]int

// Store is an in-memory table keyed by primary key
type Store struct {
	mu         sync.RWMutex
	primaryKey string
	rows       []provider.Record
	index      map[string]int
	calls      Calls
	newID      func() any
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator replaces the uuid generator used for records created
// without a primary key
func WithIDGenerator(fn func() any) Option {
	return func(s *Store) { s.newID = fn }
}

// WithRows seeds the store
func WithRows(rows ...provider.Record) Option {
	return func(s *Store) {
		for _, r := range rows {
			s.insert(copyRecord(r))
		}
	}
}

// New creates a store whose records are keyed by primaryKey
func New(primaryKey string, opts ...Option) *Store {
	s := &Store{
		primaryKey: primaryKey,
		index:      make(map[string]int),
		calls:      make(Calls),
		newID:      func() any { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calls returns a snapshot of the per-method call counters
func (s *Store) Calls() Calls {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Calls, len(s.calls))
	for k, v := range s.calls {
		out[k] = v
	}
	return out
}

// Len returns the number of stored records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *Store) count(method string) {
	s.calls[method]++
}

func (s *Store) insert(rec provider.Record) {
	key := provider.KeyOf(rec[s.primaryKey])
	if i, ok := s.index[key]; ok {
		s.rows[i] = rec
		return
	}
	s.index[key] = len(s.rows)
	s.rows = append(s.rows, rec)
}

func (s *Store) lookup(id any) (int, bool) {
	i, ok := s.index[provider.KeyOf(id)]
	return i, ok
}

// Find implements provider.Finder
func (s *Store) Find(ctx context.Context, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	s.mu.Lock()
	s.count("find")
	s.mu.Unlock()

	group, err := provider.Parse(filter)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []provider.Record
	for _, r := range s.rows {
		if provider.Match(r, group) {
			out = append(out, copyRecord(r))
		}
	}
	s.mu.RUnlock()

	return Paginate(out, page), nil
}

// FindOne implements provider.OneFinder
func (s *Store) FindOne(ctx context.Context, id any) (provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("findOne")

	i, ok := s.lookup(id)
	if !ok {
		return nil, nil
	}
	return copyRecord(s.rows[i]), nil
}

// FindMany implements provider.BatchFinder
func (s *Store) FindMany(ctx context.Context, ids []any) ([]provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("findMany")

	out := make([]provider.Record, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if i, ok := s.lookup(id); ok && !seen[i] {
			seen[i] = true
			out = append(out, copyRecord(s.rows[i]))
		}
	}
	return out, nil
}

// FindByRelatedID implements provider.RelatedFinder
func (s *Store) FindByRelatedID(ctx context.Context, relatedField string, id any) ([]provider.Record, error) {
	s.mu.Lock()
	s.count("findByRelatedId")
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	group := &provider.Group{Conditions: []*provider.Condition{{Field: relatedField, Operator: provider.Eq, Value: id}}}
	var out []provider.Record
	for _, r := range s.rows {
		if provider.Match(r, group) {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

// Count implements provider.Counter
func (s *Store) Count(ctx context.Context, filter provider.Filter) (int, error) {
	s.mu.Lock()
	s.count("count")
	s.mu.Unlock()

	group, err := provider.Parse(filter)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.rows {
		if provider.Match(r, group) {
			n++
		}
	}
	return n, nil
}

// CreateOne implements provider.Creator
func (s *Store) CreateOne(ctx context.Context, input provider.Record) (provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("createOne")
	return s.create(input)
}

// CreateMany implements provider.BulkCreator
func (s *Store) CreateMany(ctx context.Context, inputs []provider.Record) ([]provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("createMany")

	for _, in := range inputs {
		if id, ok := in[s.primaryKey]; ok && id != nil {
			if _, exists := s.lookup(id); exists {
				return nil, fmt.Errorf("memory: duplicate primary key %v", id)
			}
		}
	}
	out := make([]provider.Record, 0, len(inputs))
	for _, in := range inputs {
		rec, err := s.create(in)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) create(input provider.Record) (provider.Record, error) {
	rec := copyRecord(input)
	if rec[s.primaryKey] == nil {
		rec[s.primaryKey] = s.newID()
	}
	if _, exists := s.lookup(rec[s.primaryKey]); exists {
		return nil, fmt.Errorf("memory: duplicate primary key %v", rec[s.primaryKey])
	}
	s.insert(rec)
	return copyRecord(rec), nil
}

// UpdateOne implements provider.Updater
func (s *Store) UpdateOne(ctx context.Context, id any, input provider.Record) (provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("updateOne")
	return s.update(id, input), nil
}

// UpdateMany implements provider.BulkUpdater
func (s *Store) UpdateMany(ctx context.Context, updates []provider.Update) ([]provider.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("updateMany")

	out := make([]provider.Record, 0, len(updates))
	for _, u := range updates {
		if rec := s.update(u.ID, u.Input); rec != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

// update patches a record in place; the primary key cannot change
func (s *Store) update(id any, input provider.Record) provider.Record {
	i, ok := s.lookup(id)
	if !ok {
		return nil
	}
	rec := s.rows[i]
	for k, v := range input {
		if k == s.primaryKey {
			continue
		}
		rec[k] = v
	}
	return copyRecord(rec)
}

// DeleteOne implements provider.Deleter
func (s *Store) DeleteOne(ctx context.Context, id any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("deleteOne")
	return s.delete([]any{id}), nil
}

// DeleteMany implements provider.BulkDeleter
func (s *Store) DeleteMany(ctx context.Context, ids []any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("deleteMany")
	return s.delete(ids), nil
}

// delete removes the given ids and reports whether any existed
func (s *Store) delete(ids []any) bool {
	drop := make(map[int]bool)
	for _, id := range ids {
		if i, ok := s.lookup(id); ok {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return false
	}

	kept := s.rows[:0:0]
	for i, r := range s.rows {
		if !drop[i] {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	s.index = make(map[string]int, len(kept))
	for i, r := range kept {
		s.index[provider.KeyOf(r[s.primaryKey])] = i
	}
	return true
}

// Paginate sorts and slices rows in place according to page
func Paginate(rows []provider.Record, page *provider.Pagination) []provider.Record {
	if page == nil {
		return rows
	}
	if len(page.OrderBy) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			for _, o := range page.OrderBy {
				cmp, ok := provider.Compare(rows[i][o.Field], rows[j][o.Field])
				if !ok {
					// nils last
					ni, nj := rows[i][o.Field] == nil, rows[j][o.Field] == nil
					if ni == nj {
						continue
					}
					return nj
				}
				if cmp == 0 {
					continue
				}
				if o.Direction == provider.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if page.Offset > 0 {
		if page.Offset >= len(rows) {
			return []provider.Record{}
		}
		rows = rows[page.Offset:]
	}
	if page.Limit > 0 && page.Limit < len(rows) {
		rows = rows[:page.Limit]
	}
	return rows
}

func copyRecord(r provider.Record) provider.Record {
	out := make(provider.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
