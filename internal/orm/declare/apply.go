package declare

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/orm/provider"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/memory"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/rediscache"
	"github.com/conduit-lang/gqlmeta/internal/orm/provider/sqlprovider"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

// ErrNoDatabase is returned when an sql entity is declared without a database
var ErrNoDatabase = errors.New("sql provider declared but no database is configured")

// Backends are the shared connections entity providers are built on. Every
// member is optional.
type Backends struct {
	DB      *sql.DB
	Dialect sqlprovider.Dialect
	Redis   *redis.Client
	// CacheTTL is the record TTL of cached providers
	CacheTTL time.Duration
	Logger   *zap.Logger

	// Offline builds sql providers without a database. The resulting
	// registry describes the schema but cannot serve queries.
	Offline bool
}

// Apply registers every declared entity in reg. Errors of all entities are
// returned joined; entities that fail are not registered.
func Apply(reg *schema.Registry, file *File, backends Backends) error {
	if backends.Logger == nil {
		backends.Logger = zap.NewNop()
	}

	enums, err := buildEnums(file.Enums)
	if err != nil {
		return err
	}

	var errs []error
	for i := range file.Entities {
		decl := &file.Entities[i]
		entity, err := buildEntity(decl, enums, backends)
		if err == nil {
			err = reg.RegisterEntity(entity)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("entity %q: %w", decl.Name, err))
			continue
		}
		backends.Logger.Debug("entity declared",
			zap.String("entity", entity.Name),
			zap.String("provider", providerKind(decl.Provider)),
			zap.Int("fields", len(entity.Fields)))
	}
	return errors.Join(errs...)
}

func buildEnums(decls map[string][]string) (map[string]*schema.EnumType, error) {
	enums := make(map[string]*schema.EnumType, len(decls))
	for name, values := range decls {
		if len(values) == 0 {
			return nil, fmt.Errorf("enum %q declares no values", name)
		}
		enums[name] = &schema.EnumType{Name: name, Values: values}
	}
	return enums, nil
}

func buildEntity(decl *EntityDecl, enums map[string]*schema.EnumType, backends Backends) (*schema.Entity, error) {
	pk := decl.PrimaryKey
	if pk == "" {
		pk = "id"
	}

	entity := &schema.Entity{
		Name:                              decl.Name,
		Plural:                            decl.Plural,
		PrimaryKey:                        decl.PrimaryKey,
		Description:                       decl.Description,
		ExcludeFromBuiltInOperations:      decl.Internal,
		ExcludeFromBuiltInWriteOperations: decl.ReadOnly,
	}

	pkColumn := pk
	for _, fs := range decl.Fields {
		field, err := buildField(fs, enums)
		if err != nil {
			return nil, err
		}
		if field.Name == pk {
			pkColumn = field.ColumnName()
		}
		entity.Fields = append(entity.Fields, field)
	}
	entity.ACL = buildACL(decl.ACL, pkColumn)

	p, err := buildProvider(decl, pkColumn, backends)
	if err != nil {
		return nil, err
	}
	entity.Provider = p
	return entity, nil
}

func buildField(decl FieldDecl, enums map[string]*schema.EnumType) (*schema.Field, error) {
	field := &schema.Field{
		Name:                  decl.Name,
		Column:                decl.Column,
		Description:           decl.Description,
		Nullable:              decl.Nullable,
		List:                  decl.List,
		ReadOnly:              decl.ReadOnly,
		ExcludeFromFilterType: decl.ExcludeFromFilter,
		ExcludeFromInputTypes: decl.ExcludeFromInput,
		IDField:               decl.IDField,
		RelatedField:          decl.RelatedField,
	}

	kind, err := schema.ParseRelationKind(decl.Relation)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", decl.Name, err)
	}
	if kind != schema.RelationNone {
		field.Relation = kind
		field.Target = schema.To(decl.Target)
		return field, nil
	}

	enumName := decl.Enum
	if enumName == "" {
		if _, ok := enums[decl.Type]; ok {
			enumName = decl.Type
		}
	}
	if enumName != "" {
		enum, ok := enums[enumName]
		if !ok {
			return nil, fmt.Errorf("field %q: undeclared enum %q", decl.Name, enumName)
		}
		field.Type = schema.TypeEnum
		field.Enum = enum
		return field, nil
	}

	if decl.Type != "" {
		t, err := schema.ParseType(decl.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", decl.Name, err)
		}
		field.Type = t
	}
	return field, nil
}

func providerKind(decl ProviderDecl) string {
	if decl.Kind == "" {
		return KindMemory
	}
	return decl.Kind
}

func buildProvider(decl *EntityDecl, pkColumn string, backends Backends) (any, error) {
	var p any
	switch providerKind(decl.Provider) {
	case KindMemory:
		rows := make([]provider.Record, 0, len(decl.Provider.Rows))
		for _, row := range decl.Provider.Rows {
			rows = append(rows, provider.Record(row))
		}
		p = memory.New(pkColumn, memory.WithRows(rows...))

	case KindSQL:
		if backends.DB == nil && !backends.Offline {
			return nil, ErrNoDatabase
		}
		table := decl.Provider.Table
		if table == "" {
			table = inflect.Pluralize(inflect.Underscore(decl.Name))
		}
		opts := []sqlprovider.Option{
			sqlprovider.WithDialect(backends.Dialect),
			sqlprovider.WithLogger(backends.Logger),
		}
		if len(decl.Provider.Columns) > 0 {
			opts = append(opts, sqlprovider.WithColumns(decl.Provider.Columns...))
		}
		switch decl.Provider.IDs {
		case "":
		case "uuid":
			opts = append(opts, sqlprovider.WithIDGenerator(func() any { return uuid.NewString() }))
		default:
			return nil, fmt.Errorf("unknown id generator %q", decl.Provider.IDs)
		}
		if len(decl.Provider.Rows) > 0 {
			return nil, errors.New("seed rows are only supported by the memory provider")
		}
		p = sqlprovider.New(backends.DB, table, pkColumn, opts...)

	default:
		return nil, fmt.Errorf("unknown provider kind %q", decl.Provider.Kind)
	}

	if decl.Provider.Cache && backends.Redis != nil {
		opts := []rediscache.Option{
			rediscache.WithPrefix("gqlmeta:" + decl.Name + ":"),
			rediscache.WithLogger(backends.Logger),
		}
		if backends.CacheTTL > 0 {
			opts = append(opts, rediscache.WithTTL(backends.CacheTTL))
		}
		p = rediscache.New(p, backends.Redis, pkColumn, opts...)
	}
	return p, nil
}
