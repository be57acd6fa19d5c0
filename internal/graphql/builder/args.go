package builder

import (
	"fmt"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
)

// filter converts a list filter argument. Keys given as null are treated as
// absent.
func filter(v interface{}) provider.Filter {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(provider.Filter, len(m))
	for k, val := range m {
		if val == nil {
			continue
		}
		if k == provider.KeyAnd || k == provider.KeyOr {
			items, _ := val.([]interface{})
			nested := make([]interface{}, 0, len(items))
			for _, item := range items {
				if f := filter(item); f != nil {
					nested = append(nested, f)
				}
			}
			if len(nested) > 0 {
				out[k] = nested
			}
			continue
		}
		out[k] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// pagination converts a pagination argument
func pagination(v interface{}) (*provider.Pagination, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	page := &provider.Pagination{}
	if limit, ok := m["limit"].(int); ok {
		page.Limit = limit
	}
	if offset, ok := m["offset"].(int); ok {
		page.Offset = offset
	}
	orderBy, _ := m["orderBy"].([]interface{})
	for _, item := range orderBy {
		o, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		field, _ := o["field"].(string)
		dir, err := direction(o["direction"])
		if err != nil {
			return nil, err
		}
		page.OrderBy = append(page.OrderBy, provider.OrderBy{Field: field, Direction: dir})
	}
	return page, nil
}

func direction(v interface{}) (provider.SortOrder, error) {
	switch d := v.(type) {
	case nil:
		return provider.Asc, nil
	case provider.SortOrder:
		return d, nil
	case string:
		switch provider.SortOrder(d) {
		case provider.Asc, provider.Desc:
			return provider.SortOrder(d), nil
		}
	}
	return "", fmt.Errorf("invalid sort direction %v", v)
}

func record(v interface{}) provider.Record {
	m, _ := v.(map[string]interface{})
	return m
}

func records(v interface{}) []provider.Record {
	items, _ := v.([]interface{})
	out := make([]provider.Record, 0, len(items))
	for _, item := range items {
		if rec := record(item); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}
