package document

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klaf-go/klaf/internal/engine"
	"github.com/klaf-go/klaf/internal/pagestore"
	"github.com/klaf-go/klaf/internal/pagestore/treeadapter"
)

func newTestStore(t *testing.T, table Table) (*Store, *treeadapter.Adapter) {
	t.Helper()
	ps, err := pagestore.Create(engine.NewMemoryEngine(), pagestore.DefaultPayloadSize)
	require.NoError(t, err)
	adapter := treeadapter.New(ps, time.Millisecond)
	store, err := Create(ps, table, adapter)
	require.NoError(t, err)
	return store, adapter
}

var personTable = Table{
	"name": FieldSchema{},
	"age": FieldSchema{
		Default:  func() any { return float64(0) },
		Validate: func(v any) bool { f, ok := v.(float64); return ok && f >= 0 },
	},
}

func TestPutAppliesDefaultsAndValidation(t *testing.T) {
	store, adapter := newTestStore(t, personTable)

	id, err := store.Put(map[string]any{"name": "Ada"})
	require.NoError(t, err)
	adapter.Flush()

	docs, err := store.Pick(Query{}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, float64(0), docs[0]["age"])
	require.Equal(t, id, docs[0]["_id"])
}

func TestPutRejectsInvalidField(t *testing.T) {
	store, _ := newTestStore(t, personTable)
	_, err := store.Put(map[string]any{"name": "Bad", "age": float64(-5)})
	require.Error(t, err)
}

// S6: query with ordering.
func TestQueryAndPickOrdering(t *testing.T) {
	store, adapter := newTestStore(t, personTable)

	_, err := store.Put(map[string]any{"name": "Carol", "age": float64(40)})
	require.NoError(t, err)
	_, err = store.Put(map[string]any{"name": "Alice", "age": float64(20)})
	require.NoError(t, err)
	_, err = store.Put(map[string]any{"name": "Bob", "age": float64(30)})
	require.NoError(t, err)
	adapter.Flush()

	docs, err := store.Pick(Query{"age": map[string]any{"gte": float64(20)}}, PickOptions{Order: "age"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "Alice", docs[0]["name"])
	require.Equal(t, "Bob", docs[1]["name"])
	require.Equal(t, "Carol", docs[2]["name"])

	descDocs, err := store.Pick(Query{}, PickOptions{Order: "age", Desc: true})
	require.NoError(t, err)
	require.Equal(t, "Carol", descDocs[0]["name"])
}

func TestCountMatchesQuery(t *testing.T) {
	store, adapter := newTestStore(t, personTable)
	_, err := store.Put(map[string]any{"name": "X", "age": float64(10)})
	require.NoError(t, err)
	_, err = store.Put(map[string]any{"name": "Y", "age": float64(50)})
	require.NoError(t, err)
	adapter.Flush()

	n, err := store.Count(Query{"age": map[string]any{"gt": float64(20)}})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPartialUpdateMergesFields(t *testing.T) {
	store, adapter := newTestStore(t, personTable)
	id, err := store.Put(map[string]any{"name": "Grow", "age": float64(1)})
	require.NoError(t, err)
	adapter.Flush()

	n, err := store.PartialUpdate(Query{"name": "Grow"}, map[string]any{"age": float64(2)})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	adapter.Flush()

	docs, err := store.Pick(Query{"name": "Grow"}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, float64(2), docs[0]["age"])
	require.Equal(t, id, docs[0]["_id"])
}

func TestDeleteRemovesDocumentAndIndexEntries(t *testing.T) {
	store, adapter := newTestStore(t, personTable)
	_, err := store.Put(map[string]any{"name": "Gone", "age": float64(5)})
	require.NoError(t, err)
	adapter.Flush()

	n, err := store.Delete(Query{"name": "Gone"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	adapter.Flush()

	docs, err := store.Pick(Query{}, PickOptions{})
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestOpenReloadsDocumentStore(t *testing.T) {
	eng := engine.NewMemoryEngine()
	ps, err := pagestore.Create(eng, pagestore.DefaultPayloadSize)
	require.NoError(t, err)
	adapter := treeadapter.New(ps, time.Millisecond)
	store, err := Create(ps, personTable, adapter)
	require.NoError(t, err)

	_, err = store.Put(map[string]any{"name": "Persisted", "age": float64(7)})
	require.NoError(t, err)
	adapter.Flush()

	reopened, err := Open(ps, personTable, adapter)
	require.NoError(t, err)
	require.Equal(t, store.TableVersion(), reopened.TableVersion())

	docs, err := reopened.Pick(Query{}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestMigrateRevalidatesAgainstNewTable(t *testing.T) {
	store, adapter := newTestStore(t, personTable)
	_, err := store.Put(map[string]any{"name": "Keep", "age": float64(30)})
	require.NoError(t, err)
	adapter.Flush()

	stricter := Table{
		"name": FieldSchema{Validate: func(v any) bool { s, ok := v.(string); return ok && len(s) > 0 }},
		"age": FieldSchema{
			Validate: func(v any) bool { f, ok := v.(float64); return ok && f >= 18 },
		},
	}
	failed, err := store.Migrate(stricter)
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Equal(t, 2, store.TableVersion())
	adapter.Flush()

	docs, err := store.Pick(Query{}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestImportDataPreservesIndexOnlyWhenStoreIsEmpty(t *testing.T) {
	store, adapter := newTestStore(t, personTable)
	_, err := store.Put(map[string]any{"name": "Exported", "age": float64(1)})
	require.NoError(t, err)
	adapter.Flush()

	exported, err := store.Pick(Query{"name": "Exported"}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, exported, 1)
	originalIndex := exported[0]["documentIndex"]

	var buf bytes.Buffer
	require.NoError(t, store.ExportData(&buf))

	emptyTarget, emptyAdapter := newTestStore(t, personTable)
	n, err := emptyTarget.ImportData(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	emptyAdapter.Flush()

	docs, err := emptyTarget.Pick(Query{}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, originalIndex, docs[0]["documentIndex"])

	nonEmptyTarget, nonEmptyAdapter := newTestStore(t, personTable)
	_, err = nonEmptyTarget.Put(map[string]any{"name": "AlreadyHere", "age": float64(2)})
	require.NoError(t, err)
	nonEmptyAdapter.Flush()

	n, err = nonEmptyTarget.ImportData(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	nonEmptyAdapter.Flush()

	docs, err = nonEmptyTarget.Pick(Query{"name": "Exported"}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotEqual(t, originalIndex, docs[0]["documentIndex"])
}

func TestExportImportRoundTrip(t *testing.T) {
	store, adapter := newTestStore(t, personTable)
	_, err := store.Put(map[string]any{"name": "Export1", "age": float64(11)})
	require.NoError(t, err)
	_, err = store.Put(map[string]any{"name": "Export2", "age": float64(22)})
	require.NoError(t, err)
	adapter.Flush()

	var buf bytes.Buffer
	require.NoError(t, store.ExportData(&buf))

	imported, importedAdapter := newTestStore(t, personTable)
	n, err := imported.ImportData(&buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	importedAdapter.Flush()

	docs, err := imported.Pick(Query{}, PickOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}
