package provider

import (
	"context"
	"fmt"
)

// The helpers below invoke exactly one contract method on p, following the
// precedence documented on Capability.Supports.

// FindOne loads a record by primary key. Providers without FindOne are
// queried through Find with an equality filter on primaryKey.
func FindOne(ctx context.Context, p any, primaryKey string, id any) (Record, error) {
	if f, ok := p.(OneFinder); ok {
		return f.FindOne(ctx, id)
	}
	if f, ok := p.(Finder); ok {
		rows, err := f.Find(ctx, Filter{primaryKey: id}, &Pagination{Limit: 1})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
	return nil, unsupported(OpFindOne)
}

// Find lists records.
func Find(ctx context.Context, p any, filter Filter, page *Pagination) ([]Record, error) {
	if f, ok := p.(Finder); ok {
		return f.Find(ctx, filter, page)
	}
	return nil, unsupported(OpFind)
}

// FindMany loads records by primary key in one call.
func FindMany(ctx context.Context, p any, ids []any) ([]Record, error) {
	if f, ok := p.(BatchFinder); ok {
		return f.FindMany(ctx, ids)
	}
	return nil, unsupported(OpFind)
}

// Count counts matching records, falling back to the length of a Find.
func Count(ctx context.Context, p any, filter Filter) (int, error) {
	if c, ok := p.(Counter); ok {
		return c.Count(ctx, filter)
	}
	if f, ok := p.(Finder); ok {
		rows, err := f.Find(ctx, filter, nil)
		if err != nil {
			return 0, err
		}
		return len(rows), nil
	}
	return 0, unsupported(OpCount)
}

// FindByRelatedID loads the records whose relatedField references id,
// falling back to Find with an equality filter on relatedField.
func FindByRelatedID(ctx context.Context, p any, relatedField string, id any) ([]Record, error) {
	if f, ok := p.(RelatedFinder); ok {
		return f.FindByRelatedID(ctx, relatedField, id)
	}
	if f, ok := p.(Finder); ok {
		return f.Find(ctx, Filter{relatedField: id}, nil)
	}
	return nil, unsupported(OpFindByRelatedID)
}

// CreateOne inserts one record, falling back to a single-element CreateMany.
func CreateOne(ctx context.Context, p any, input Record) (Record, error) {
	if c, ok := p.(Creator); ok {
		return c.CreateOne(ctx, input)
	}
	if c, ok := p.(BulkCreator); ok {
		rows, err := c.CreateMany(ctx, []Record{input})
		if err != nil {
			return nil, err
		}
		return single(rows, OpCreateOne)
	}
	return nil, unsupported(OpCreateOne)
}

// CreateMany inserts several records.
func CreateMany(ctx context.Context, p any, inputs []Record) ([]Record, error) {
	if c, ok := p.(BulkCreator); ok {
		return c.CreateMany(ctx, inputs)
	}
	return nil, unsupported(OpCreateMany)
}

// UpdateOne patches one record, falling back to a single-element UpdateMany.
func UpdateOne(ctx context.Context, p any, id any, input Record) (Record, error) {
	if u, ok := p.(Updater); ok {
		return u.UpdateOne(ctx, id, input)
	}
	if u, ok := p.(BulkUpdater); ok {
		rows, err := u.UpdateMany(ctx, []Update{{ID: id, Input: input}})
		if err != nil {
			return nil, err
		}
		return single(rows, OpUpdateOne)
	}
	return nil, unsupported(OpUpdateOne)
}

// UpdateMany patches several records.
func UpdateMany(ctx context.Context, p any, updates []Update) ([]Record, error) {
	if u, ok := p.(BulkUpdater); ok {
		return u.UpdateMany(ctx, updates)
	}
	return nil, unsupported(OpUpdateMany)
}

// DeleteOne removes one record, falling back to a single-element DeleteMany.
func DeleteOne(ctx context.Context, p any, id any) (bool, error) {
	if d, ok := p.(Deleter); ok {
		return d.DeleteOne(ctx, id)
	}
	if d, ok := p.(BulkDeleter); ok {
		return d.DeleteMany(ctx, []any{id})
	}
	return false, unsupported(OpDeleteOne)
}

// DeleteMany removes several records.
func DeleteMany(ctx context.Context, p any, ids []any) (bool, error) {
	if d, ok := p.(BulkDeleter); ok {
		return d.DeleteMany(ctx, ids)
	}
	return false, unsupported(OpDeleteMany)
}

func single(rows []Record, op Operation) (Record, error) {
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("provider: %s returned %d records, expected 1", op, len(rows))
	}
}
