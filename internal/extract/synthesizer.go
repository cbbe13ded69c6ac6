package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"github.com/dkritz/sql-server-extractor/internal/database"
)

// columnDescriptor carries what the synthesizer needs to render one column.
// DataType arrives pre-rendered by the catalog query: character types with an
// explicit length or MAX, decimal/numeric with (precision,scale), the rest
// bare.
type columnDescriptor struct {
	Name       string
	DataType   string
	IsNullable bool
	IsIdentity bool
	IsComputed bool
}

// Synthesizer reconstructs a CREATE TABLE statement from column metadata for
// tables that have no native definition object.
type Synthesizer struct {
	db *database.DB
}

func NewSynthesizer(db *database.DB) *Synthesizer {
	return &Synthesizer{db: db}
}

// columnQuery renders the type string server-side so the Go side only deals
// with assembled column lines. max_length = -1 is the sentinel for MAX.
const columnQueryTemplate = `SELECT
    c.name,
    t.name +
        CASE
            WHEN t.name IN ('char', 'varchar', 'nchar', 'nvarchar')
            THEN '(' + CASE WHEN c.max_length = -1 THEN 'MAX' ELSE CAST(c.max_length AS varchar(10)) END + ')'
            WHEN t.name IN ('decimal', 'numeric')
            THEN '(' + CAST(c.precision AS varchar(10)) + ',' + CAST(c.scale AS varchar(10)) + ')'
            ELSE ''
        END AS data_type,
    c.is_nullable,
    c.is_identity,
    c.is_computed
FROM [%[1]s].sys.columns c
JOIN [%[1]s].sys.types t ON c.user_type_id = t.user_type_id
JOIN [%[1]s].sys.objects o ON c.object_id = o.object_id
JOIN [%[1]s].sys.schemas sc ON o.schema_id = sc.schema_id
WHERE o.type = 'U' AND o.name = @name AND sc.name = @schema
ORDER BY c.column_id`

// Synthesize builds a best-effort CREATE TABLE statement for the table. It
// fails only by returning an error to its caller; the Resolver converts that
// into an Unavailable result.
func (s *Synthesizer) Synthesize(ctx context.Context, dbName string, ref catalog.ObjectRef) (string, error) {
	cols, err := s.columns(ctx, dbName, ref)
	if err != nil {
		return "", err
	}
	// A table with zero columns still emits the empty-body statement; the
	// catalog said the table exists, and an empty body records that honestly.
	return renderCreateTable(ref.Schema, ref.Name, cols), nil
}

// columns fetches the table's column descriptors in ordinal order.
func (s *Synthesizer) columns(ctx context.Context, dbName string, ref catalog.ObjectRef) ([]columnDescriptor, error) {
	if err := catalog.ValidateIdentifier(dbName); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(columnQueryTemplate, dbName)

	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("name", ref.Name), sql.Named("schema", ref.Schema))
	if err != nil {
		return nil, &ErrQueryExecution{
			Msg: fmt.Sprintf("querying columns for %s", ref.FullName()),
			Err: err,
		}
	}
	defer rows.Close()

	var cols []columnDescriptor
	for rows.Next() {
		var col columnDescriptor
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.IsIdentity, &col.IsComputed); err != nil {
			return nil, fmt.Errorf("error scanning column details for %s: %w", ref.FullName(), err)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, &ErrQueryExecution{
			Msg: fmt.Sprintf("iterating columns for %s", ref.FullName()),
			Err: err,
		}
	}
	return cols, nil
}

// renderCreateTable emits one comma-separated line per column in ordinal
// order, with no trailing comma after the last. IDENTITY renders with a fixed
// (1,1) seed/increment: the source metadata does not carry the actual values,
// so this is a lossy approximation. Computed columns are detected but not
// specially rendered.
func renderCreateTable(schema, table string, cols []columnDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE [%s].[%s] (\n", schema, table)
	for i, col := range cols {
		identity := ""
		if col.IsIdentity {
			identity = " IDENTITY(1,1)"
		}
		nullable := "NOT NULL"
		if col.IsNullable {
			nullable = "NULL"
		}
		fmt.Fprintf(&b, "    [%s] %s%s %s", col.Name, col.DataType, identity, nullable)
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String()
}
