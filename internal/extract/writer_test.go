package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean name", "dbo.Orders", "dbo.Orders"},
		{"backslash", `HOST\INSTANCE`, "HOST_INSTANCE"},
		{"forward slash", "a/b", "a_b"},
		{"colon", "server:1433", "server_1433"},
		{"all three", `a\b/c:d`, "a_b_c_d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.Equal(t, tt.want, got)
			// Idempotence: sanitizing a sanitized name is a no-op.
			assert.Equal(t, got, Sanitize(got))
			assert.NotContains(t, got, `\`)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, ":")
		})
	}
}

func TestWriterPath(t *testing.T) {
	w := NewWriter("/out", `HOST\PROD`)

	ref := catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable}
	assert.Equal(t, filepath.Join("/out", "HOST_PROD", "tables", "Sales", "dbo.Orders.sql"), w.Path("Sales", ref))

	ref = catalog.ObjectRef{Schema: "dbo", Name: "usp_CloseOrder", Kind: catalog.KindProcedure}
	assert.Equal(t, filepath.Join("/out", "HOST_PROD", "stored_procedures", "Sales", "dbo.usp_CloseOrder.sql"), w.Path("Sales", ref))
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, "S1")
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	res := DefinitionResult{
		Object: catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable},
		Text:   "CREATE TABLE [dbo].[Orders] (\n);",
		Source: SourceSynthesized,
	}
	path, err := w.Write("DB1", res)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "S1", "tables", "DB1", "dbo.Orders.sql"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.SplitN(string(content), "\n", 5)
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "-- Extracted on 2026-03-14T09:26:53Z", lines[0])
	assert.Equal(t, "-- Database: DB1", lines[1])
	assert.Equal(t, "-- Object: dbo.Orders", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "CREATE TABLE [dbo].[Orders] (\n);", lines[4])
}

func TestWrite_Overwrites(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, "S1")

	ref := catalog.ObjectRef{Schema: "dbo", Name: "V1", Kind: catalog.KindView}
	_, err := w.Write("DB1", DefinitionResult{Object: ref, Text: "old body", Source: SourceNative})
	require.NoError(t, err)
	path, err := w.Write("DB1", DefinitionResult{Object: ref, Text: "new body", Source: SourceNative})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "new body")
	assert.NotContains(t, string(content), "old body")
}

func TestWrite_SanitizesObjectName(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, "S1")

	ref := catalog.ObjectRef{Schema: "dbo", Name: `weird/name:v2`, Kind: catalog.KindView}
	path, err := w.Write("DB1", DefinitionResult{Object: ref, Text: "-- body", Source: SourceNative})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "S1", "views", "DB1", "dbo.weird_name_v2.sql"), path)

	// The header keeps the original, unsanitized object name.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- Object: dbo.weird/name:v2")
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, "S1")

	ref := catalog.ObjectRef{Schema: "dbo", Name: "Orders", Kind: catalog.KindTable}
	path, err := w.Write("DB1", DefinitionResult{Object: ref, Text: "-- body", Source: SourceNative})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dbo.Orders.sql", entries[0].Name())
}
