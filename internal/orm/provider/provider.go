// Package provider defines the narrow backend contract that generated CRUD
// resolvers call into. A backend implements any subset of the capability
// interfaces below; the schema builder inspects which ones are present and
// only emits GraphQL operations that can be served.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Record is a backend-shaped row keyed by column name.
type Record = map[string]any

// SortOrder is the direction of an ordering clause.
type SortOrder string

const (
	Asc  SortOrder = "ASC"
	Desc SortOrder = "DESC"
)

// OrderBy orders results by a single column.
type OrderBy struct {
	Field     string
	Direction SortOrder
}

// Pagination limits and orders a Find call. A zero Limit means no limit.
type Pagination struct {
	Limit   int
	Offset  int
	OrderBy []OrderBy
}

// Update targets one record in an UpdateMany call.
type Update struct {
	ID    any
	Input Record
}

type (
	// Finder lists records matching a filter.
	Finder interface {
		Find(ctx context.Context, filter Filter, page *Pagination) ([]Record, error)
	}

	// OneFinder loads a single record by primary key. A missing record is
	// reported as (nil, nil).
	OneFinder interface {
		FindOne(ctx context.Context, id any) (Record, error)
	}

	// RelatedFinder loads the records whose relatedField references id.
	RelatedFinder interface {
		FindByRelatedID(ctx context.Context, relatedField string, id any) ([]Record, error)
	}

	// BatchFinder loads several records by primary key in one round trip.
	// Missing ids are simply absent from the result.
	BatchFinder interface {
		FindMany(ctx context.Context, ids []any) ([]Record, error)
	}

	// Counter counts records matching a filter.
	Counter interface {
		Count(ctx context.Context, filter Filter) (int, error)
	}

	// Creator inserts one record and returns it as stored.
	Creator interface {
		CreateOne(ctx context.Context, input Record) (Record, error)
	}

	// BulkCreator inserts several records.
	BulkCreator interface {
		CreateMany(ctx context.Context, inputs []Record) ([]Record, error)
	}

	// Updater patches one record by primary key.
	Updater interface {
		UpdateOne(ctx context.Context, id any, input Record) (Record, error)
	}

	// BulkUpdater patches several records.
	BulkUpdater interface {
		UpdateMany(ctx context.Context, updates []Update) ([]Record, error)
	}

	// Deleter removes one record by primary key.
	Deleter interface {
		DeleteOne(ctx context.Context, id any) (bool, error)
	}

	// BulkDeleter removes several records by primary key.
	BulkDeleter interface {
		DeleteMany(ctx context.Context, ids []any) (bool, error)
	}
)

// Capability is a bit set of the contract methods a provider implements.
type Capability uint16

const (
	CapFind Capability = 1 << iota
	CapFindOne
	CapFindByRelatedID
	CapFindMany
	CapCount
	CapCreateOne
	CapCreateMany
	CapUpdateOne
	CapUpdateMany
	CapDeleteOne
	CapDeleteMany
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapFind, "find"},
	{CapFindOne, "findOne"},
	{CapFindByRelatedID, "findByRelatedId"},
	{CapFindMany, "findMany"},
	{CapCount, "count"},
	{CapCreateOne, "createOne"},
	{CapCreateMany, "createMany"},
	{CapUpdateOne, "updateOne"},
	{CapUpdateMany, "updateMany"},
	{CapDeleteOne, "deleteOne"},
	{CapDeleteMany, "deleteMany"},
}

// Reporter is implemented by decorators that carry every contract method
// but only serve the capabilities of the provider they wrap.
type Reporter interface {
	ProviderCapabilities() Capability
}

// Capabilities detects which contract methods p implements. A Reporter
// states its capabilities itself.
func Capabilities(p any) Capability {
	if p == nil {
		return 0
	}
	if r, ok := p.(Reporter); ok {
		return r.ProviderCapabilities()
	}
	var c Capability
	if _, ok := p.(Finder); ok {
		c |= CapFind
	}
	if _, ok := p.(OneFinder); ok {
		c |= CapFindOne
	}
	if _, ok := p.(RelatedFinder); ok {
		c |= CapFindByRelatedID
	}
	if _, ok := p.(BatchFinder); ok {
		c |= CapFindMany
	}
	if _, ok := p.(Counter); ok {
		c |= CapCount
	}
	if _, ok := p.(Creator); ok {
		c |= CapCreateOne
	}
	if _, ok := p.(BulkCreator); ok {
		c |= CapCreateMany
	}
	if _, ok := p.(Updater); ok {
		c |= CapUpdateOne
	}
	if _, ok := p.(BulkUpdater); ok {
		c |= CapUpdateMany
	}
	if _, ok := p.(Deleter); ok {
		c |= CapDeleteOne
	}
	if _, ok := p.(BulkDeleter); ok {
		c |= CapDeleteMany
	}
	return c
}

// Has reports whether every bit in other is set.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// Names returns the contract method names in their fixed declaration order.
func (c Capability) Names() []string {
	var names []string
	for _, cn := range capabilityNames {
		if c.Has(cn.cap) {
			names = append(names, cn.name)
		}
	}
	return names
}

// String returns the capability names joined with "|".
func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

// Operation is a logical operation the resolver layer can ask a provider for.
type Operation int

const (
	OpFindOne Operation = iota
	OpFind
	OpCount
	OpFindByRelatedID
	OpCreateOne
	OpCreateMany
	OpUpdateOne
	OpUpdateMany
	OpDeleteOne
	OpDeleteMany
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OpFindOne:
		return "findOne"
	case OpFind:
		return "find"
	case OpCount:
		return "count"
	case OpFindByRelatedID:
		return "findByRelatedId"
	case OpCreateOne:
		return "createOne"
	case OpCreateMany:
		return "createMany"
	case OpUpdateOne:
		return "updateOne"
	case OpUpdateMany:
		return "updateMany"
	case OpDeleteOne:
		return "deleteOne"
	case OpDeleteMany:
		return "deleteMany"
	default:
		return "unknown"
	}
}

// Supports reports whether a provider with capabilities c can serve op.
//
// Precedence is fixed: a single-record operation is served by its own
// method when present and falls back to the bulk method otherwise
// (deleteOne before deleteMany, createOne before createMany, updateOne
// before updateMany). Reads fall back to Find. Bulk operations are only
// served by their bulk method.
func (c Capability) Supports(op Operation) bool {
	switch op {
	case OpFindOne:
		return c.Has(CapFindOne) || c.Has(CapFind)
	case OpFind:
		return c.Has(CapFind)
	case OpCount:
		return c.Has(CapCount) || c.Has(CapFind)
	case OpFindByRelatedID:
		return c.Has(CapFindByRelatedID) || c.Has(CapFind)
	case OpCreateOne:
		return c.Has(CapCreateOne) || c.Has(CapCreateMany)
	case OpCreateMany:
		return c.Has(CapCreateMany)
	case OpUpdateOne:
		return c.Has(CapUpdateOne) || c.Has(CapUpdateMany)
	case OpUpdateMany:
		return c.Has(CapUpdateMany)
	case OpDeleteOne:
		return c.Has(CapDeleteOne) || c.Has(CapDeleteMany)
	case OpDeleteMany:
		return c.Has(CapDeleteMany)
	default:
		return false
	}
}

// ErrUnsupported is returned when a provider cannot serve an operation.
var ErrUnsupported = errors.New("provider: operation not supported")

// UnsupportedError names the operation a provider could not serve.
type UnsupportedError struct {
	Op Operation
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("provider: %s not supported", e.Op)
}

// Is makes errors.Is(err, ErrUnsupported) succeed.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func unsupported(op Operation) error {
	return &UnsupportedError{Op: op}
}
