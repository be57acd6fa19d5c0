package synth

import (
	"encoding/json"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// JSON is a scalar carrying arbitrary JSON values
var JSON = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case json.RawMessage:
			var out interface{}
			if err := json.Unmarshal(v, &out); err != nil {
				return nil
			}
			return out
		case []byte:
			var out interface{}
			if err := json.Unmarshal(v, &out); err != nil {
				return string(v)
			}
			return out
		default:
			return v
		}
	},
	ParseValue: func(value interface{}) interface{} {
		return value
	},
	ParseLiteral: parseJSONLiteral,
})

func parseJSONLiteral(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		return nil
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.EnumValue:
		return v.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(v.Values))
		for _, item := range v.Values {
			out = append(out, parseJSONLiteral(item))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = parseJSONLiteral(f.Value)
		}
		return out
	default:
		return nil
	}
}

// scalar returns the GraphQL scalar of a non-enum field type
func scalar(t schema.Type) *graphql.Scalar {
	switch t {
	case schema.TypeID:
		return graphql.ID
	case schema.TypeInt:
		return graphql.Int
	case schema.TypeFloat:
		return graphql.Float
	case schema.TypeBoolean:
		return graphql.Boolean
	case schema.TypeDateTime:
		return graphql.DateTime
	case schema.TypeJSON:
		return JSON
	default:
		return graphql.String
	}
}
