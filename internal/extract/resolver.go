package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"github.com/dkritz/sql-server-extractor/internal/database"
	"go.uber.org/zap"
)

// Resolver retrieves the authoritative textual definition for a single
// schema object. It never returns an error: a definition that cannot be
// retrieved resolves to an Unavailable placeholder so the pipeline keeps a
// 1:1 mapping between catalog entries and output files.
type Resolver struct {
	db    *database.DB
	synth *Synthesizer
	log   *zap.Logger

	// Retry governs transient metadata query failures.
	Retry RetryOptions
}

func NewResolver(db *database.DB, logger *zap.Logger) *Resolver {
	return &Resolver{
		db:    db,
		synth: NewSynthesizer(db),
		log:   logger,
		Retry: DefaultRetryOptions,
	}
}

// moduleQuery looks up the stored textual body for views and procedures,
// keyed by database, schema, and name.
const moduleQueryTemplate = `SELECT m.definition
FROM [%[1]s].sys.sql_modules m
JOIN [%[1]s].sys.objects o ON m.object_id = o.object_id
JOIN [%[1]s].sys.schemas s ON o.schema_id = s.schema_id
WHERE o.type = @type AND o.name = @name AND s.name = @schema`

// objectDefinitionQuery covers tables with inline textual definitions.
const objectDefinitionQueryTemplate = `SELECT CONVERT(varchar(max), OBJECT_DEFINITION(obj.object_id))
FROM [%[1]s].sys.objects obj
JOIN [%[1]s].sys.schemas sc ON obj.schema_id = sc.schema_id
WHERE obj.type = 'U' AND obj.name = @name AND sc.name = @schema`

// Resolve produces the definition for one object. Tables take the two-tier
// path (native definition first, synthesized fallback); views and procedures
// read the module store directly.
func (r *Resolver) Resolve(ctx context.Context, dbName string, ref catalog.ObjectRef) DefinitionResult {
	switch ref.Kind {
	case catalog.KindTable:
		return r.resolveTable(ctx, dbName, ref)
	default:
		return r.resolveModule(ctx, dbName, ref)
	}
}

// resolveModule fetches a view or procedure body from sys.sql_modules. A
// missing row (object dropped mid-run, stripped definition, permission
// denial) is a normal Unavailable outcome.
func (r *Resolver) resolveModule(ctx context.Context, dbName string, ref catalog.ObjectRef) DefinitionResult {
	objType := "V"
	if ref.Kind == catalog.KindProcedure {
		objType = "P"
	}

	definition, err := r.queryDefinition(ctx, dbName, moduleQueryTemplate, ref,
		sql.Named("type", objType), sql.Named("name", ref.Name), sql.Named("schema", ref.Schema))
	if err != nil {
		r.log.Warn("could not extract definition",
			zap.String("database", dbName),
			zap.String("object", ref.FullName()),
			zap.Stringer("kind", ref.Kind),
			zap.Error(err))
	}
	if err != nil || definition == "" {
		return DefinitionResult{
			Object: ref,
			Text:   fmt.Sprintf("-- Could not extract %s definition for %s", ref.Kind, ref.FullName()),
			Source: SourceUnavailable,
		}
	}
	return DefinitionResult{Object: ref, Text: definition, Source: SourceNative}
}

// resolveTable tries the object-definition store first, then falls back to
// structural DDL synthesis. Tables have no single canonical definition
// object, so the reconstruction path is mandatory for forward progress.
func (r *Resolver) resolveTable(ctx context.Context, dbName string, ref catalog.ObjectRef) DefinitionResult {
	definition, err := r.queryDefinition(ctx, dbName, objectDefinitionQueryTemplate, ref,
		sql.Named("name", ref.Name), sql.Named("schema", ref.Schema))
	if err == nil && definition != "" {
		return DefinitionResult{Object: ref, Text: definition, Source: SourceNative}
	}
	if err != nil {
		r.log.Warn("native table definition lookup failed, synthesizing",
			zap.String("database", dbName),
			zap.String("object", ref.FullName()),
			zap.Error(err))
	}

	ddl, synthErr := withRetry(ctx, r.Retry, func(ctx context.Context) (string, error) {
		return r.synth.Synthesize(ctx, dbName, ref)
	})
	if synthErr != nil {
		r.log.Warn("could not synthesize DDL",
			zap.String("database", dbName),
			zap.String("object", ref.FullName()),
			zap.Error(synthErr))
		return DefinitionResult{
			Object: ref,
			Text:   fmt.Sprintf("-- Could not extract DDL for %s\n-- Error: %s", ref.FullName(), synthErr),
			Source: SourceUnavailable,
		}
	}
	return DefinitionResult{Object: ref, Text: ddl, Source: SourceSynthesized}
}

// queryDefinition runs a single-value definition lookup with retry. An empty
// string with nil error means the lookup legitimately found nothing.
func (r *Resolver) queryDefinition(ctx context.Context, dbName, queryTemplate string, ref catalog.ObjectRef, args ...interface{}) (string, error) {
	if err := catalog.ValidateIdentifier(dbName); err != nil {
		return "", err
	}
	query := fmt.Sprintf(queryTemplate, dbName)

	return withRetry(ctx, r.Retry, func(ctx context.Context) (string, error) {
		var definition sql.NullString
		err := r.db.QueryRowContext(ctx, query, args...).Scan(&definition)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		if err != nil {
			return "", &ErrQueryExecution{
				Msg: fmt.Sprintf("looking up definition of %s", ref.FullName()),
				Err: err,
			}
		}
		if !definition.Valid {
			return "", nil
		}
		return definition.String, nil
	})
}
