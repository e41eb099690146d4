package adapter

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	m "faultline.dev/pkg/faultline/internal/model"
)

func openTestStore(t *testing.T) (*BoltPredicateStore, m.Path) {
	t.Helper()

	path := m.Path(filepath.Join(t.TempDir(), "cache", "predicates.db"))

	store, err := NewBoltPredicateStore(path)
	require.NoError(t, err)

	return store, path
}

func TestBoltPredicateStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	defer store.Close()

	records := []m.PredicateRecord{
		{File: "calc.go", Line: 12, Expression: "x < 0", Variable: "x", VariableType: "int", Probability: 0.9, Checksum: "abc"},
		{File: "calc.go", Line: 12, Expression: "!(x < 0)", Variable: "x", VariableType: "int", Probability: 0.9, Checksum: "abc"},
		{File: "calc.go", Line: 120, Expression: "y == 0", Variable: "y", Checksum: "abc"},
	}
	require.NoError(t, store.Save(ctx, records))

	got, err := store.Load(ctx, "calc.go", 12)
	require.NoError(t, err)
	require.Len(t, got, 2)

	for _, rec := range got {
		assert.Equal(t, PredicateSchemaVersion, rec.SchemaVersion)
		assert.Equal(t, 12, rec.Line)
		assert.True(t, rec.Predicate().Cached)
	}

	none, err := store.Load(ctx, "calc.go", 1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBoltPredicateStore_SaveReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	defer store.Close()

	rec := m.PredicateRecord{File: "calc.go", Line: 3, Expression: "n > 0", Checksum: "old"}
	require.NoError(t, store.Save(ctx, []m.PredicateRecord{rec}))

	rec.Checksum = "new"
	require.NoError(t, store.Save(ctx, []m.PredicateRecord{rec}))

	got, err := store.Load(ctx, "calc.go", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Checksum)
}

func TestBoltPredicateStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)

	require.NoError(t, store.Save(ctx, []m.PredicateRecord{{File: "a.go", Line: 1, Expression: "ok"}}))
	require.NoError(t, store.Close())

	reopened, err := NewBoltPredicateStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "a.go", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBoltPredicateStore_SkipsOtherSchemaVersions(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	defer store.Close()

	stale, err := json.Marshal(m.PredicateRecord{SchemaVersion: PredicateSchemaVersion + 1, File: "a.go", Line: 1, Expression: "old"})
	require.NoError(t, err)

	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPredicates).Put(append(locationPrefix("a.go", 1), "old"...), stale)
	}))

	got, err := store.Load(ctx, "a.go", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBoltPredicateStore_CancelledContext(t *testing.T) {
	store, _ := openTestStore(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Save(ctx, nil), context.Canceled)

	_, err := store.Load(ctx, "a.go", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
