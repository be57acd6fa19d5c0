// Package rediscache decorates a provider with a Redis read-through cache of
// records by primary key.
//
// FindOne and FindMany are served from Redis when possible; misses are loaded
// from the wrapped provider and stored with a TTL. Writes through the
// decorator evict the affected keys. Redis failures never fail a call: they
// are logged and the wrapped provider answers instead.
package rediscache

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// Provider caches the records of a wrapped provider. It carries every
// contract method but reports only the capabilities of the wrapped provider.
type Provider struct {
	inner      any
	caps       provider.Capability
	primaryKey string
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	logger     *zap.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithTTL sets how long cached records live. The default is 5 minutes.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithPrefix sets the key prefix, typically the entity name followed by a
// colon. The default is "gqlmeta:".
func WithPrefix(prefix string) Option {
	return func(p *Provider) {
		p.prefix = prefix
	}
}

// WithLogger sets the logger cache failures are reported to
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New wraps inner, whose records are keyed by primaryKey
func New(inner any, client *redis.Client, primaryKey string, opts ...Option) *Provider {
	p := &Provider{
		inner:      inner,
		caps:       provider.Capabilities(inner),
		primaryKey: primaryKey,
		client:     client,
		prefix:     "gqlmeta:",
		ttl:        5 * time.Minute,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProviderCapabilities implements provider.Reporter
func (p *Provider) ProviderCapabilities() provider.Capability {
	return p.caps
}

// Unwrap returns the wrapped provider
func (p *Provider) Unwrap() any {
	return p.inner
}

func (p *Provider) key(id any) string {
	return p.prefix + provider.KeyOf(id)
}

func (p *Provider) get(ctx context.Context, id any) (provider.Record, bool) {
	b, err := p.client.Get(ctx, p.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("cache read failed", zap.String("key", p.key(id)), zap.Error(err))
		}
		return nil, false
	}
	rec, err := decode(b)
	if err != nil {
		p.logger.Warn("cache entry undecodable", zap.String("key", p.key(id)), zap.Error(err))
		return nil, false
	}
	return rec, true
}

func (p *Provider) set(ctx context.Context, rec provider.Record) {
	id, ok := rec[p.primaryKey]
	if !ok || id == nil {
		return
	}
	b, err := msgpack.Marshal(rec)
	if err != nil {
		p.logger.Warn("cache entry unencodable", zap.String("key", p.key(id)), zap.Error(err))
		return
	}
	if err := p.client.Set(ctx, p.key(id), b, p.ttl).Err(); err != nil {
		p.logger.Warn("cache write failed", zap.String("key", p.key(id)), zap.Error(err))
	}
}

func (p *Provider) evict(ctx context.Context, ids ...any) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = p.key(id)
	}
	if err := p.client.Del(ctx, keys...).Err(); err != nil {
		p.logger.Warn("cache eviction failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Clear removes every key under the prefix
func (p *Provider) Clear(ctx context.Context) error {
	iter := p.client.Scan(ctx, 0, p.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := p.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func decode(b []byte) (provider.Record, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindOne implements provider.OneFinder. Missing records are not cached.
func (p *Provider) FindOne(ctx context.Context, id any) (provider.Record, error) {
	if rec, ok := p.get(ctx, id); ok {
		return rec, nil
	}
	rec, err := provider.FindOne(ctx, p.inner, p.primaryKey, id)
	if err != nil || rec == nil {
		return rec, err
	}
	p.set(ctx, rec)
	return rec, nil
}

// FindMany implements provider.BatchFinder. Only the ids missing from the
// cache reach the wrapped provider.
func (p *Provider) FindMany(ctx context.Context, ids []any) ([]provider.Record, error) {
	out := make([]provider.Record, 0, len(ids))
	var misses []any
	for _, id := range ids {
		if rec, ok := p.get(ctx, id); ok {
			out = append(out, rec)
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return out, nil
	}

	var loaded []provider.Record
	if p.caps.Has(provider.CapFindMany) {
		rows, err := provider.FindMany(ctx, p.inner, misses)
		if err != nil {
			return nil, err
		}
		loaded = rows
	} else {
		for _, id := range misses {
			rec, err := provider.FindOne(ctx, p.inner, p.primaryKey, id)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				loaded = append(loaded, rec)
			}
		}
	}
	for _, rec := range loaded {
		p.set(ctx, rec)
	}
	return append(out, loaded...), nil
}

// Find implements provider.Finder. Lists are not cached.
func (p *Provider) Find(ctx context.Context, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	return provider.Find(ctx, p.inner, filter, page)
}

// FindByRelatedID implements provider.RelatedFinder
func (p *Provider) FindByRelatedID(ctx context.Context, relatedField string, id any) ([]provider.Record, error) {
	return provider.FindByRelatedID(ctx, p.inner, relatedField, id)
}

// Count implements provider.Counter
func (p *Provider) Count(ctx context.Context, filter provider.Filter) (int, error) {
	return provider.Count(ctx, p.inner, filter)
}

// CreateOne implements provider.Creator
func (p *Provider) CreateOne(ctx context.Context, input provider.Record) (provider.Record, error) {
	return provider.CreateOne(ctx, p.inner, input)
}

// CreateMany implements provider.BulkCreator
func (p *Provider) CreateMany(ctx context.Context, inputs []provider.Record) ([]provider.Record, error) {
	return provider.CreateMany(ctx, p.inner, inputs)
}

// UpdateOne implements provider.Updater
func (p *Provider) UpdateOne(ctx context.Context, id any, input provider.Record) (provider.Record, error) {
	rec, err := provider.UpdateOne(ctx, p.inner, id, input)
	p.evict(ctx, id)
	return rec, err
}

// UpdateMany implements provider.BulkUpdater
func (p *Provider) UpdateMany(ctx context.Context, updates []provider.Update) ([]provider.Record, error) {
	rows, err := provider.UpdateMany(ctx, p.inner, updates)
	ids := make([]any, len(updates))
	for i, u := range updates {
		ids[i] = u.ID
	}
	p.evict(ctx, ids...)
	return rows, err
}

// DeleteOne implements provider.Deleter
func (p *Provider) DeleteOne(ctx context.Context, id any) (bool, error) {
	ok, err := provider.DeleteOne(ctx, p.inner, id)
	p.evict(ctx, id)
	return ok, err
}

// DeleteMany implements provider.BulkDeleter
func (p *Provider) DeleteMany(ctx context.Context, ids []any) (bool, error) {
	ok, err := provider.DeleteMany(ctx, p.inner, ids)
	p.evict(ctx, ids...)
	return ok, err
}
