package extract

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"github.com/dkritz/sql-server-extractor/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fastRetry keeps failure-path tests from sleeping through real backoff.
var fastRetry = RetryOptions{
	MaxAttempts:       1,
	InitialBackoff:    time.Millisecond,
	MaxBackoff:        time.Millisecond,
	BackoffMultiplier: 1.0,
}

func newMockResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	r := NewResolver(&database.DB{Pool: mockDB}, zap.NewNop())
	r.Retry = fastRetry
	return r, mock
}

func TestResolve_ViewNative(t *testing.T) {
	r, mock := newMockResolver(t)

	rows := sqlmock.NewRows([]string{"definition"}).
		AddRow("CREATE VIEW dbo.ActiveOrders AS SELECT * FROM dbo.Orders WHERE Closed = 0")
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.sql_modules m`).
		WithArgs(sql.Named("type", "V"), sql.Named("name", "ActiveOrders"), sql.Named("schema", "dbo")).
		WillReturnRows(rows)

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "ActiveOrders", Kind: catalog.KindView})

	assert.Equal(t, SourceNative, res.Source)
	assert.Contains(t, res.Text, "CREATE VIEW dbo.ActiveOrders")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_ViewMissingIsUnavailable(t *testing.T) {
	r, mock := newMockResolver(t)

	// Object dropped mid-run: the lookup yields no rows but the pipeline
	// still produces a placeholder artifact body.
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.sql_modules m`).
		WillReturnRows(sqlmock.NewRows([]string{"definition"}))

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "V1", Kind: catalog.KindView})

	assert.Equal(t, SourceUnavailable, res.Source)
	assert.Equal(t, "-- Could not extract view definition for dbo.V1", res.Text)
}

func TestResolve_ProcedureNative(t *testing.T) {
	r, mock := newMockResolver(t)

	rows := sqlmock.NewRows([]string{"definition"}).
		AddRow("CREATE PROCEDURE dbo.usp_CloseOrder AS BEGIN RETURN END")
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.sql_modules m`).
		WithArgs(sql.Named("type", "P"), sql.Named("name", "usp_CloseOrder"), sql.Named("schema", "dbo")).
		WillReturnRows(rows)

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "usp_CloseOrder", Kind: catalog.KindProcedure})

	assert.Equal(t, SourceNative, res.Source)
}

func TestResolve_ProcedureQueryErrorIsUnavailable(t *testing.T) {
	r, mock := newMockResolver(t)

	mock.ExpectQuery(`FROM \[Sales\]\.sys\.sql_modules m`).
		WillReturnError(errors.New("permission denied"))

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "usp_Locked", Kind: catalog.KindProcedure})

	assert.Equal(t, SourceUnavailable, res.Source)
	assert.Equal(t, "-- Could not extract stored procedure definition for dbo.usp_Locked", res.Text)
}

func TestResolve_TableNativeDefinition(t *testing.T) {
	r, mock := newMockResolver(t)

	rows := sqlmock.NewRows([]string{"definition"}).AddRow("CREATE TABLE dbo.Orders (Id int)")
	mock.ExpectQuery(`OBJECT_DEFINITION\(obj\.object_id\)`).
		WithArgs(sql.Named("name", "Orders"), sql.Named("schema", "dbo")).
		WillReturnRows(rows)

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable})

	assert.Equal(t, SourceNative, res.Source)
	assert.Equal(t, "CREATE TABLE dbo.Orders (Id int)", res.Text)
}

func TestResolve_TableFallsBackToSynthesis(t *testing.T) {
	r, mock := newMockResolver(t)

	// OBJECT_DEFINITION returns NULL for ordinary tables.
	mock.ExpectQuery(`OBJECT_DEFINITION\(obj\.object_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"definition"}).AddRow(nil))
	cols := sqlmock.NewRows(columnCols).
		AddRow("Id", "int", false, true, false).
		AddRow("Total", "decimal(10,2)", true, false, false)
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.columns c`).
		WithArgs(sql.Named("name", "Orders"), sql.Named("schema", "dbo")).
		WillReturnRows(cols)

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable})

	assert.Equal(t, SourceSynthesized, res.Source)
	assert.Equal(t, "CREATE TABLE [dbo].[Orders] (\n    [Id] int IDENTITY(1,1) NOT NULL,\n    [Total] decimal(10,2) NULL\n);", res.Text)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_TableSynthesisErrorIsUnavailable(t *testing.T) {
	r, mock := newMockResolver(t)

	mock.ExpectQuery(`OBJECT_DEFINITION\(obj\.object_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"definition"}))
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.columns c`).
		WillReturnError(errors.New("deadlock victim"))

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable})

	assert.Equal(t, SourceUnavailable, res.Source)
	assert.Contains(t, res.Text, "-- Could not extract DDL for dbo.Orders")
	assert.Contains(t, res.Text, "-- Error:")
	assert.Contains(t, res.Text, "deadlock victim")
}

func TestResolve_RetriesTransientQueryFailure(t *testing.T) {
	r, mock := newMockResolver(t)
	r.Retry = RetryOptions{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
	}

	mock.ExpectQuery(`FROM \[Sales\]\.sys\.sql_modules m`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.sql_modules m`).
		WillReturnRows(sqlmock.NewRows([]string{"definition"}).AddRow("CREATE VIEW dbo.V1 AS SELECT 1 AS One"))

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "V1", Kind: catalog.KindView})

	assert.Equal(t, SourceNative, res.Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_TableSynthesisRetriesTransientFailure(t *testing.T) {
	r, mock := newMockResolver(t)
	r.Retry = RetryOptions{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1.0,
	}

	// A blip on the column-metadata query must not downgrade the artifact
	// to a placeholder when a later attempt would have produced DDL.
	mock.ExpectQuery(`OBJECT_DEFINITION\(obj\.object_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"definition"}))
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.columns c`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery(`FROM \[Sales\]\.sys\.columns c`).
		WithArgs(sql.Named("name", "Orders"), sql.Named("schema", "dbo")).
		WillReturnRows(sqlmock.NewRows(columnCols).
			AddRow("Id", "int", false, true, false).
			AddRow("Total", "decimal(10,2)", true, false, false))

	res := r.Resolve(context.Background(), "Sales",
		catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable})

	assert.Equal(t, SourceSynthesized, res.Source)
	assert.Equal(t, "CREATE TABLE [dbo].[Orders] (\n    [Id] int IDENTITY(1,1) NOT NULL,\n    [Total] decimal(10,2) NULL\n);", res.Text)
	require.NoError(t, mock.ExpectationsWereMet())
}
