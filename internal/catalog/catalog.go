package catalog

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dkritz/sql-server-extractor/internal/database"
)

// ObjectKind identifies the class of a schema object.
type ObjectKind int

const (
	KindTable ObjectKind = iota
	KindView
	KindProcedure
)

// Kinds lists every object kind in extraction order: tables first, then
// views, then stored procedures.
var Kinds = []ObjectKind{KindTable, KindView, KindProcedure}

// Folder returns the output directory name for the kind.
func (k ObjectKind) Folder() string {
	switch k {
	case KindTable:
		return "tables"
	case KindView:
		return "views"
	case KindProcedure:
		return "stored_procedures"
	default:
		return "unknown"
	}
}

func (k ObjectKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindView:
		return "view"
	case KindProcedure:
		return "stored procedure"
	default:
		return "unknown"
	}
}

// ObjectRef identifies a schema object within a database. Schema.Name is
// unique per (database, kind) pair.
type ObjectRef struct {
	Schema string
	Name   string
	Kind   ObjectKind
}

// FullName returns the schema-qualified object name.
func (r ObjectRef) FullName() string {
	return r.Schema + "." + r.Name
}

// identifierPattern allow-lists characters for identifiers that end up in
// structural statement positions, where driver parameters cannot be used.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#@ ]*$`)

// ValidateIdentifier rejects names that cannot be safely interpolated into a
// bracketed identifier position.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("identifier %q contains characters outside the allowed set", name)
	}
	return nil
}

// Reader enumerates databases and the schema objects within them. All
// queries are read-only metadata lookups.
type Reader struct {
	db *database.DB
}

func NewReader(db *database.DB) *Reader {
	return &Reader{db: db}
}

// systemDatabases is SQL Server's fixed set, always excluded.
const listDatabasesQuery = `SELECT name FROM sys.databases WHERE name NOT IN ('master', 'model', 'msdb', 'tempdb') AND state = 0 ORDER BY name`

// ListDatabases returns the names of user databases in an online state,
// ordered by name.
func (r *Reader) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listDatabasesQuery)
	if err != nil {
		return nil, fmt.Errorf("error querying databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning database name: %w", err)
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating database rows: %w", err)
	}
	return databases, nil
}

// ListTables returns the user tables of a database ordered by (schema, name).
func (r *Reader) ListTables(ctx context.Context, dbName string) ([]ObjectRef, error) {
	query := `SELECT TABLE_SCHEMA, TABLE_NAME FROM [%s].INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_SCHEMA, TABLE_NAME`
	return r.listObjects(ctx, dbName, query, KindTable)
}

// ListViews returns the views of a database ordered by (schema, name).
func (r *Reader) ListViews(ctx context.Context, dbName string) ([]ObjectRef, error) {
	query := `SELECT TABLE_SCHEMA, TABLE_NAME FROM [%s].INFORMATION_SCHEMA.VIEWS ORDER BY TABLE_SCHEMA, TABLE_NAME`
	return r.listObjects(ctx, dbName, query, KindView)
}

// ListProcedures returns the stored procedures of a database ordered by
// (schema, name).
func (r *Reader) ListProcedures(ctx context.Context, dbName string) ([]ObjectRef, error) {
	query := `SELECT SPECIFIC_SCHEMA, SPECIFIC_NAME FROM [%s].INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_TYPE = 'PROCEDURE' ORDER BY SPECIFIC_SCHEMA, SPECIFIC_NAME`
	return r.listObjects(ctx, dbName, query, KindProcedure)
}

// List dispatches to the lister for the given kind.
func (r *Reader) List(ctx context.Context, dbName string, kind ObjectKind) ([]ObjectRef, error) {
	switch kind {
	case KindTable:
		return r.ListTables(ctx, dbName)
	case KindView:
		return r.ListViews(ctx, dbName)
	case KindProcedure:
		return r.ListProcedures(ctx, dbName)
	default:
		return nil, fmt.Errorf("unsupported object kind: %d", kind)
	}
}

// listObjects runs a two-column (schema, name) metadata query against the
// named database. The database name lands in a structural position, so it is
// validated before interpolation.
func (r *Reader) listObjects(ctx context.Context, dbName, queryTemplate string, kind ObjectKind) ([]ObjectRef, error) {
	if err := ValidateIdentifier(dbName); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(queryTemplate, dbName)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying %ss in %s: %w", kind, dbName, err)
	}
	defer rows.Close()

	var refs []ObjectRef
	for rows.Next() {
		ref := ObjectRef{Kind: kind}
		if err := rows.Scan(&ref.Schema, &ref.Name); err != nil {
			return nil, fmt.Errorf("error scanning %s name: %w", kind, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", kind, err)
	}
	return refs, nil
}
