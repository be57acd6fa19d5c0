// Package dataloader deduplicates and batches the record lookups made while
// resolving a single GraphQL request.
//
// A Loader is request scoped: create one per request (see WithLoader and
// the HTTP middleware) and never share it between requests, since its cache
// holds records fetched on behalf of one caller.
package dataloader

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

type result struct {
	record  provider.Record
	records []provider.Record
	err     error
}

// batch collects the ids of one entity queued by thunks until the first
// thunk of the batch is evaluated.
type batch struct {
	entity     *schema.Entity
	ids        []any
	keys       map[string]bool
	gen        uint64
	dispatched bool
	done       chan struct{}
}

// Loader caches single-record and related-record lookups for one request.
// Results, "not found" and errors are all cached until ClearCache.
type Loader struct {
	mu      sync.Mutex
	group   singleflight.Group
	one     map[string]*result
	related map[string]*result
	pending map[string]*batch
	// gen changes on ClearCache and Forget; loads started under an older
	// generation do not store their results.
	gen    uint64
	logger *zap.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the loader's logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an empty loader
func New(opts ...Option) *Loader {
	l := &Loader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	l.ClearCache()
	return l
}

// ClearCache drops every cached result and queued batch
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.one = make(map[string]*result)
	l.related = make(map[string]*result)
	l.pending = make(map[string]*batch)
	l.gen++
}

func (l *Loader) generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// store runs fn under the lock when the cache is still at generation gen
func (l *Loader) store(gen uint64, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen {
		fn()
	}
}

func oneKey(entity *schema.Entity, id any) string {
	return entity.Name + "\x00" + provider.KeyOf(id)
}

func relatedKey(entity *schema.Entity, relatedField string, id any) string {
	return entity.Name + "\x00" + relatedField + "\x00" + provider.KeyOf(id)
}

func flightKey(kind string, gen uint64, key string) string {
	return kind + "\x00" + strconv.FormatUint(gen, 10) + "\x00" + key
}

func (l *Loader) cachedOne(key string) (*result, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.one[key]
	return r, ok
}

// LoadOne returns the backend record of entity with primary key id, or nil
// when it does not exist. Concurrent calls for the same key share a single
// provider call.
func (l *Loader) LoadOne(ctx context.Context, entity *schema.Entity, id any) (provider.Record, error) {
	key := oneKey(entity, id)
	if r, ok := l.cachedOne(key); ok {
		return r.record, r.err
	}

	gen := l.generation()
	v, err, _ := l.group.Do(flightKey("one", gen, key), func() (any, error) {
		if r, ok := l.cachedOne(key); ok {
			return r.record, r.err
		}
		rec, err := provider.FindOne(ctx, entity.Provider, entity.PrimaryKeyColumn(), id)
		l.logger.Debug("loaded record",
			zap.String("entity", entity.Name),
			zap.Any("id", id),
			zap.Bool("found", rec != nil),
			zap.Error(err))

		l.store(gen, func() { l.one[key] = &result{record: rec, err: err} })
		return rec, err
	})
	rec, _ := v.(provider.Record)
	return rec, err
}

// LoadByRelatedID returns the backend records of entity whose column
// relatedField references id. Concurrent calls for the same key share a
// single provider call.
func (l *Loader) LoadByRelatedID(ctx context.Context, entity *schema.Entity, relatedField string, id any) ([]provider.Record, error) {
	key := relatedKey(entity, relatedField, id)
	cached := func() (*result, bool) {
		l.mu.Lock()
		defer l.mu.Unlock()
		r, ok := l.related[key]
		return r, ok
	}
	if r, ok := cached(); ok {
		return r.records, r.err
	}

	gen := l.generation()
	v, err, _ := l.group.Do(flightKey("related", gen, key), func() (any, error) {
		if r, ok := cached(); ok {
			return r.records, r.err
		}
		rows, err := provider.FindByRelatedID(ctx, entity.Provider, relatedField, id)
		l.logger.Debug("loaded related records",
			zap.String("entity", entity.Name),
			zap.String("relatedField", relatedField),
			zap.Any("id", id),
			zap.Int("count", len(rows)),
			zap.Error(err))

		l.store(gen, func() { l.related[key] = &result{records: rows, err: err} })
		return rows, err
	})
	rows, _ := v.([]provider.Record)
	return rows, err
}

// Thunk is a deferred load. graphql-go resolves a field returning a
// func() (interface{}, error) only after sibling fields have been visited,
// which lets queued ids be loaded together.
type Thunk func() (provider.Record, error)

// LoadOneThunk queues id for a batched load and returns a thunk yielding
// its record. Entities whose provider cannot load by id in bulk fall back
// to LoadOne when the thunk is evaluated.
func (l *Loader) LoadOneThunk(ctx context.Context, entity *schema.Entity, id any) Thunk {
	key := oneKey(entity, id)
	if r, ok := l.cachedOne(key); ok {
		return func() (provider.Record, error) { return r.record, r.err }
	}
	if !entity.Capabilities().Has(provider.CapFindMany) {
		return func() (provider.Record, error) { return l.LoadOne(ctx, entity, id) }
	}

	l.mu.Lock()
	b, ok := l.pending[entity.Name]
	if !ok || b.gen != l.gen {
		b = &batch{entity: entity, keys: make(map[string]bool), gen: l.gen, done: make(chan struct{})}
		l.pending[entity.Name] = b
	}
	if !b.keys[key] {
		b.keys[key] = true
		b.ids = append(b.ids, id)
	}
	l.mu.Unlock()

	return func() (provider.Record, error) {
		l.dispatch(ctx, b)
		if r, ok := l.cachedOne(key); ok {
			return r.record, r.err
		}
		// the cache was cleared while the batch was in flight
		return l.LoadOne(ctx, entity, id)
	}
}

// dispatch loads a batch exactly once; later callers wait for it.
func (l *Loader) dispatch(ctx context.Context, b *batch) {
	l.mu.Lock()
	if b.dispatched {
		l.mu.Unlock()
		<-b.done
		return
	}
	b.dispatched = true
	if l.pending[b.entity.Name] == b {
		delete(l.pending, b.entity.Name)
	}
	l.mu.Unlock()
	defer close(b.done)

	rows, err := provider.FindMany(ctx, b.entity.Provider, b.ids)
	l.logger.Debug("loaded record batch",
		zap.String("entity", b.entity.Name),
		zap.Int("ids", len(b.ids)),
		zap.Int("found", len(rows)),
		zap.Error(err))

	pk := b.entity.PrimaryKeyColumn()
	keys := make([]string, len(b.ids))
	for i, id := range b.ids {
		keys[i] = provider.KeyOf(id)
	}
	ordered, errs := OrderByKeys(keys, rows, func(rec provider.Record) string {
		return provider.KeyOf(rec[pk])
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != b.gen {
		return
	}
	for i, id := range b.ids {
		r := &result{err: err}
		if err == nil && !errors.Is(errs[i], ErrNotFound) {
			r.record = ordered[i]
		}
		l.one[oneKey(b.entity, id)] = r
	}
}

// Prime stores a known record, e.g. one returned by a mutation.
func (l *Loader) Prime(entity *schema.Entity, rec provider.Record) {
	if rec == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.one[oneKey(entity, rec[entity.PrimaryKeyColumn()])] = &result{record: rec}
}

// Forget drops every cached result of an entity. Mutations call it so reads
// later in the same request observe their writes.
func (l *Loader) Forget(entity *schema.Entity) {
	prefix := entity.Name + "\x00"
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	for k := range l.one {
		if strings.HasPrefix(k, prefix) {
			delete(l.one, k)
		}
	}
	for k := range l.related {
		if strings.HasPrefix(k, prefix) {
			delete(l.related, k)
		}
	}
}

type ctxKey struct{}

// WithLoader stores l in ctx
func WithLoader(ctx context.Context, l *Loader) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the loader stored in ctx, or nil
func FromContext(ctx context.Context) *Loader {
	l, _ := ctx.Value(ctxKey{}).(*Loader)
	return l
}

// For returns the loader stored in ctx. Without one a fresh loader is
// returned, so lookups still work but are not shared.
func For(ctx context.Context) *Loader {
	if l := FromContext(ctx); l != nil {
		return l
	}
	return New()
}
