package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/catalogsearch/internal/document"
	cserrors "github.com/shopfront/catalogsearch/internal/errors"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(id int64, name string) document.Document {
	return document.Document{ID: id, Name: name, Description: name + " description", CategoryName: "Tools", CountryName: "Poland", Price: "1"}
}

func snapshotCount(t *testing.T, s *Store) uint64 {
	t.Helper()
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()
	n, err := snap.DocCount()
	require.NoError(t, err)
	return n
}

func TestStore_CommitAndLoad(t *testing.T) {
	// Given: an empty in-memory store
	s := newMemStore(t)
	ctx := context.Background()

	// When: two documents are committed
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(1, "Hammer")), Add(doc(2, "Saw"))}))

	// Then: both are visible with their stored fields
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	n, err := snap.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	got, ok, err := snap.Document(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, doc(1, "Hammer"), got)

	_, ok, err = snap.Document(3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Commit_ReplaceIsAtomic(t *testing.T) {
	// Given: a store holding id 1
	s := newMemStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(1, "Old name"))}))

	// When: delete and re-add share one commit
	require.NoError(t, s.Commit(ctx, []Op{Delete(1), Add(doc(1, "New name"))}))

	// Then: exactly one live document with the new content
	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	ids, err := snap.AllIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	got, ok, err := snap.Document(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "New name", got.Name)
}

func TestStore_Commit_LastOpWins(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx, []Op{Add(doc(5, "x")), Delete(5)}))

	assert.Equal(t, uint64(0), snapshotCount(t, s))
}

func TestStore_Commit_DeleteAbsentIsNoop(t *testing.T) {
	s := newMemStore(t)

	err := s.Commit(context.Background(), []Op{Delete(99)})

	require.NoError(t, err)
	assert.Equal(t, uint64(0), snapshotCount(t, s))
}

func TestStore_Commit_EmptyBatch(t *testing.T) {
	s := newMemStore(t)
	assert.NoError(t, s.Commit(context.Background(), nil))
}

func TestStore_Commit_CancelledContext(t *testing.T) {
	s := newMemStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Commit(ctx, []Op{Add(doc(1, "x"))})

	require.Error(t, err)
	assert.True(t, errors.Is(err, cserrors.IndexWriteFailed))
	assert.Equal(t, uint64(0), snapshotCount(t, s))
}

func TestSnapshot_IsolatedFromLaterCommits(t *testing.T) {
	// Given: a snapshot taken over one document
	s := newMemStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(1, "a"))}))

	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	// When: more documents are committed
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(2, "b")), Add(doc(3, "c"))}))

	// Then: the old snapshot is unchanged and a new one sees the commit
	n, err := snap.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, uint64(3), snapshotCount(t, s))
}

func TestSnapshot_Search_TiesOrderedByAscendingID(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []Op{
		Add(doc(10, "same")), Add(doc(-1, "same")), Add(doc(2, "same")), Add(doc(100, "same")),
	}))

	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	hits, err := snap.Search(ctx, bleve.NewMatchAllQuery(), 10)
	require.NoError(t, err)

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	assert.Equal(t, []int64{-1, 2, 10, 100}, ids)
}

func TestSnapshot_Search_RespectsSize(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(1, "a")), Add(doc(2, "b")), Add(doc(3, "c"))}))

	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	hits, err := snap.Search(ctx, bleve.NewMatchAllQuery(), 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = snap.Search(ctx, bleve.NewMatchAllQuery(), 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSnapshot_Search_TextFieldMatch(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(1, "Red Hammer")), Add(doc(2, "Blue Saw"))}))

	snap, err := s.OpenSnapshot()
	require.NoError(t, err)
	defer func() { _ = snap.Close() }()

	q := bleve.NewMatchQuery("hammer")
	q.SetField(document.FieldName)
	hits, err := snap.Search(ctx, q, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestStore_OnDisk_PersistsAcrossReopen(t *testing.T) {
	location := filepath.Join(t.TempDir(), "catalog")
	ctx := context.Background()

	s, err := Open(location, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, []Op{Add(doc(7, "Lamp"))}))
	require.NoError(t, s.Close())

	reopened, err := Open(location, Options{})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	stats, err := reopened.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.DocCount)
	assert.Equal(t, location, stats.Location)
	assert.False(t, stats.InMemory)
}

func TestStore_Open_LockContentionIsUnavailable(t *testing.T) {
	// Given: a location held open by one store
	location := t.TempDir()
	first, err := Open(location, Options{})
	require.NoError(t, err)

	// When: a second store opens the same location
	_, err = Open(location, Options{})

	// Then: it fails fast with StoreUnavailable
	require.Error(t, err)
	assert.True(t, errors.Is(err, cserrors.StoreUnavailable))

	// And: the location opens again once released
	require.NoError(t, first.Close())
	second, err := Open(location, Options{})
	require.NoError(t, err)
	_ = second.Close()
}

func TestStore_Open_CorruptIndex(t *testing.T) {
	location := t.TempDir()
	indexDir := filepath.Join(location, indexDirName)
	require.NoError(t, os.MkdirAll(indexDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(indexDir, "index_meta.json"), nil, 0o644))

	t.Run("reported as unavailable by default", func(t *testing.T) {
		_, err := Open(location, Options{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, cserrors.StoreUnavailable))
	})

	t.Run("recreated when recovery enabled", func(t *testing.T) {
		s, err := Open(location, Options{RecoverCorrupt: true})
		require.NoError(t, err)
		defer func() { _ = s.Close() }()

		stats, err := s.Stats()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), stats.DocCount)
	})
}

func TestValidateIndexIntegrity(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, validateIndexIntegrity(filepath.Join(dir, "missing")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte("{bad"), 0o644))
	assert.Error(t, validateIndexIntegrity(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index_meta.json"), []byte(`{"storage":"scorch"}`), 0o644))
	assert.NoError(t, validateIndexIntegrity(dir))
}

func TestStore_Close_Idempotent(t *testing.T) {
	s, err := Open("", Options{})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Commit(context.Background(), []Op{Add(doc(1, "x"))})
	assert.True(t, errors.Is(err, cserrors.IndexWriteFailed))

	_, err = s.OpenSnapshot()
	assert.True(t, errors.Is(err, cserrors.StoreUnavailable))
}

func TestStore_ConcurrentReadersDuringCommits(t *testing.T) {
	s := newMemStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				snap, err := s.OpenSnapshot()
				if !assert.NoError(t, err) {
					return
				}
				_, err = snap.DocCount()
				assert.NoError(t, err)
				_ = snap.Close()
			}
		}()
	}
	for i := int64(0); i < 20; i++ {
		require.NoError(t, s.Commit(ctx, []Op{Add(doc(i, "item"))}))
	}
	wg.Wait()

	assert.Equal(t, uint64(20), snapshotCount(t, s))
}

func TestOpKind_String(t *testing.T) {
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "add", OpAdd.String())
	assert.Equal(t, "unknown", OpKind(9).String())
}
