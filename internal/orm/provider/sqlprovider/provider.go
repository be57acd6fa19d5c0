// Package sqlprovider serves one table through database/sql. It implements
// every provider capability for PostgreSQL, SQLite and MySQL.
package sqlprovider

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// Provider reads and writes the rows of a single table
type Provider struct {
	db         *sql.DB
	dialect    Dialect
	table      string
	primaryKey string
	columns    []string
	newID      func() any
	logger     *zap.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithDialect selects the SQL dialect. The default is Postgres.
func WithDialect(d Dialect) Option {
	return func(p *Provider) {
		if d != nil {
			p.dialect = d
		}
	}
}

// WithColumns limits the selected columns. The default selects every column.
func WithColumns(columns ...string) Option {
	return func(p *Provider) {
		p.columns = columns
	}
}

// WithIDGenerator assigns primary keys to inserts that carry none
func WithIDGenerator(fn func() any) Option {
	return func(p *Provider) {
		p.newID = fn
	}
}

// WithLogger sets the logger statements are traced to at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a provider for table keyed by the primaryKey column
func New(db *sql.DB, table, primaryKey string, opts ...Option) *Provider {
	p := &Provider{
		db:         db,
		dialect:    Postgres,
		table:      table,
		primaryKey: primaryKey,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Table returns the table served by the provider
func (p *Provider) Table() string {
	return p.table
}

func (p *Provider) stmt() *statement {
	return &statement{dialect: p.dialect}
}

func (p *Provider) trace(query string, args []any) {
	if ce := p.logger.Check(zap.DebugLevel, "sql statement"); ce != nil {
		ce.Write(
			zap.String("dialect", p.dialect.Name()),
			zap.String("table", p.table),
			zap.String("sql", query),
			zap.Int("args", len(args)))
	}
}

func (p *Provider) selectList() string {
	if len(p.columns) == 0 {
		return "*"
	}
	quoted := make([]string, len(p.columns))
	for i, c := range p.columns {
		quoted[i] = p.dialect.Quote(c)
	}
	return strings.Join(quoted, ", ")
}

func (p *Provider) query(ctx context.Context, q querier, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	s := p.stmt()
	where, err := s.where(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + p.selectList() + " FROM " + p.dialect.Quote(p.table) + where + s.orderBy(page)
	if page != nil {
		query += p.dialect.Limit(page.Limit, page.Offset)
	}
	p.trace(query, s.args)

	rows, err := q.QueryContext(ctx, query, s.args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	out, err := scanRows(rows)
	return out, ConvertDBError(err)
}

func (p *Provider) one(ctx context.Context, q querier, id any) (provider.Record, error) {
	rows, err := p.query(ctx, q, provider.Filter{p.primaryKey: id}, &provider.Pagination{Limit: 1})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Find implements provider.Finder
func (p *Provider) Find(ctx context.Context, filter provider.Filter, page *provider.Pagination) ([]provider.Record, error) {
	return p.query(ctx, p.db, filter, page)
}

// FindOne implements provider.OneFinder
func (p *Provider) FindOne(ctx context.Context, id any) (provider.Record, error) {
	return p.one(ctx, p.db, id)
}

// FindMany implements provider.BatchFinder
func (p *Provider) FindMany(ctx context.Context, ids []any) ([]provider.Record, error) {
	if len(ids) == 0 {
		return []provider.Record{}, nil
	}
	return p.query(ctx, p.db, provider.Filter{p.primaryKey + provider.In.Suffix(): ids}, nil)
}

// FindByRelatedID implements provider.RelatedFinder
func (p *Provider) FindByRelatedID(ctx context.Context, relatedField string, id any) ([]provider.Record, error) {
	return p.query(ctx, p.db, provider.Filter{relatedField: id}, nil)
}

// Count implements provider.Counter
func (p *Provider) Count(ctx context.Context, filter provider.Filter) (int, error) {
	s := p.stmt()
	where, err := s.where(filter)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + p.dialect.Quote(p.table) + where
	p.trace(query, s.args)

	var n int
	if err := p.db.QueryRowContext(ctx, query, s.args...).Scan(&n); err != nil {
		return 0, ConvertDBError(err)
	}
	return n, nil
}

// CreateOne implements provider.Creator
func (p *Provider) CreateOne(ctx context.Context, input provider.Record) (provider.Record, error) {
	return p.insert(ctx, p.db, input)
}

// CreateMany implements provider.BulkCreator. The inserts share one
// transaction.
func (p *Provider) CreateMany(ctx context.Context, inputs []provider.Record) ([]provider.Record, error) {
	out := make([]provider.Record, 0, len(inputs))
	err := withTx(ctx, p.db, func(tx *sql.Tx) error {
		for _, in := range inputs {
			rec, err := p.insert(ctx, tx, in)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) insert(ctx context.Context, q querier, input provider.Record) (provider.Record, error) {
	rec := make(provider.Record, len(input)+1)
	for k, v := range input {
		rec[k] = v
	}
	if rec[p.primaryKey] == nil && p.newID != nil {
		rec[p.primaryKey] = p.newID()
	}

	s := p.stmt()
	columns := sortedColumns(rec)
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = p.dialect.Quote(c)
		placeholders[i] = s.bind(rec[c])
	}

	query := "INSERT INTO " + p.dialect.Quote(p.table)
	switch {
	case len(columns) > 0:
		query += " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	case p.dialect == MySQL:
		query += " () VALUES ()"
	default:
		query += " DEFAULT VALUES"
	}

	if p.dialect.Returning() {
		query += " RETURNING " + p.selectList()
		p.trace(query, s.args)
		rows, err := q.QueryContext(ctx, query, s.args...)
		if err != nil {
			return nil, ConvertDBError(err)
		}
		out, err := scanRows(rows)
		if err != nil {
			return nil, ConvertDBError(err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("insert into %s returned no row", p.table)
		}
		return out[0], nil
	}

	p.trace(query, s.args)
	res, err := q.ExecContext(ctx, query, s.args...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	id := rec[p.primaryKey]
	if id == nil {
		if id, err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return p.one(ctx, q, id)
}

// UpdateOne implements provider.Updater. A missing record yields nil.
func (p *Provider) UpdateOne(ctx context.Context, id any, input provider.Record) (provider.Record, error) {
	return p.update(ctx, p.db, id, input)
}

// UpdateMany implements provider.BulkUpdater. The updates share one
// transaction; records that do not exist are skipped.
func (p *Provider) UpdateMany(ctx context.Context, updates []provider.Update) ([]provider.Record, error) {
	out := make([]provider.Record, 0, len(updates))
	err := withTx(ctx, p.db, func(tx *sql.Tx) error {
		for _, u := range updates {
			rec, err := p.update(ctx, tx, u.ID, u.Input)
			if err != nil {
				return err
			}
			if rec != nil {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) update(ctx context.Context, q querier, id any, input provider.Record) (provider.Record, error) {
	s := p.stmt()
	var sets []string
	for _, c := range sortedColumns(input) {
		if c == p.primaryKey {
			continue
		}
		sets = append(sets, p.dialect.Quote(c)+" = "+s.bind(input[c]))
	}

	if len(sets) > 0 {
		query := "UPDATE " + p.dialect.Quote(p.table) + " SET " + strings.Join(sets, ", ") +
			" WHERE " + p.dialect.Quote(p.primaryKey) + " = " + s.bind(id)
		p.trace(query, s.args)
		if _, err := q.ExecContext(ctx, query, s.args...); err != nil {
			return nil, ConvertDBError(err)
		}
	}
	return p.one(ctx, q, id)
}

// DeleteOne implements provider.Deleter
func (p *Provider) DeleteOne(ctx context.Context, id any) (bool, error) {
	return p.delete(ctx, provider.Filter{p.primaryKey: id})
}

// DeleteMany implements provider.BulkDeleter
func (p *Provider) DeleteMany(ctx context.Context, ids []any) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	return p.delete(ctx, provider.Filter{p.primaryKey + provider.In.Suffix(): ids})
}

func (p *Provider) delete(ctx context.Context, filter provider.Filter) (bool, error) {
	s := p.stmt()
	where, err := s.where(filter)
	if err != nil {
		return false, err
	}
	query := "DELETE FROM " + p.dialect.Quote(p.table) + where
	p.trace(query, s.args)

	res, err := p.db.ExecContext(ctx, query, s.args...)
	if err != nil {
		return false, ConvertDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func sortedColumns(rec provider.Record) []string {
	columns := make([]string, 0, len(rec))
	for c := range rec {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}
