package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	digest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickhohler/snug/chunkstore"
)

// memStore is an in-memory chunkstore.Store test double.
type memStore struct {
	mu       sync.Mutex
	fail     bool
	chunks   map[digest.Digest][]byte
	metadata map[digest.Digest]chunkstore.Metadata
}

func newMemStore() *memStore {
	return &memStore{
		chunks:   make(map[digest.Digest][]byte),
		metadata: make(map[digest.Digest]chunkstore.Metadata),
	}
}

func (m *memStore) Write(_ context.Context, d digest.Digest, data []byte, metadata chunkstore.Metadata) (digest.Digest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", chunkstore.ErrStorageUnavailable
	}
	m.chunks[d] = data
	m.metadata[d] = chunkstore.MergeMetadata(m.metadata[d], metadata)
	return d, nil
}

func (m *memStore) Read(_ context.Context, d digest.Digest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.chunks[d]
	if !ok {
		return nil, chunkstore.ErrNotFound
	}
	return data, nil
}

func (m *memStore) ReadRange(ctx context.Context, d digest.Digest, offset, length int64) ([]byte, error) {
	data, err := m.Read(ctx, d)
	if err != nil {
		return nil, err
	}
	if offset > int64(len(data)) {
		return nil, chunkstore.ErrOutOfRange
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

func (m *memStore) Exists(_ context.Context, d digest.Digest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chunks[d]
	return ok, nil
}

func (m *memStore) ExistsBatch(ctx context.Context, ds []digest.Digest) (map[digest.Digest]bool, error) {
	result := make(map[digest.Digest]bool, len(ds))
	for _, d := range ds {
		ok, _ := m.Exists(ctx, d)
		result[d] = ok
	}
	return result, nil
}

func (m *memStore) Size(_ context.Context, d digest.Digest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.chunks[d]
	if !ok {
		return 0, chunkstore.ErrNotFound
	}
	return int64(len(data)), nil
}

func (m *memStore) Metadata(_ context.Context, d digest.Digest) (chunkstore.Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.metadata[d]
	if !ok {
		return chunkstore.Metadata{}, chunkstore.ErrNotFound
	}
	return meta, nil
}

func (m *memStore) Delete(_ context.Context, d digest.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, d)
	delete(m.metadata, d)
	return nil
}

func (m *memStore) ListDigests(_ context.Context) ([]digest.Digest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]digest.Digest, 0, len(m.chunks))
	for d := range m.chunks {
		out = append(out, d)
	}
	return out, nil
}

func testDigest(t *testing.T, content string) digest.Digest {
	t.Helper()
	return digest.FromString(content)
}

func TestWriteSucceedsIfOnePrimaryAccepts(t *testing.T) {
	ok := newMemStore()
	bad := &memStore{fail: true, chunks: map[digest.Digest][]byte{}, metadata: map[digest.Digest]chunkstore.Metadata{}}

	s, err := New([]chunkstore.Store{bad, ok}, nil)
	require.NoError(t, err)
	defer s.Close()

	d := testDigest(t, "payload")
	_, err = s.Write(context.Background(), d, []byte("payload"), chunkstore.Metadata{})
	require.NoError(t, err)
}

func TestWriteFailsWhenAllPrimariesFail(t *testing.T) {
	bad1 := &memStore{fail: true, chunks: map[digest.Digest][]byte{}, metadata: map[digest.Digest]chunkstore.Metadata{}}
	bad2 := &memStore{fail: true, chunks: map[digest.Digest][]byte{}, metadata: map[digest.Digest]chunkstore.Metadata{}}

	s, err := New([]chunkstore.Store{bad1, bad2}, nil)
	require.NoError(t, err)
	defer s.Close()

	d := testDigest(t, "payload")
	_, err = s.Write(context.Background(), d, []byte("payload"), chunkstore.Metadata{})
	assert.Error(t, err)
}

func TestNewRequiresAtLeastOnePrimary(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestReadFallsBackAcrossPrimariesThenGlaciers(t *testing.T) {
	emptyPrimary := newMemStore()
	glacier := newMemStore()

	d := testDigest(t, "glacier-only")
	_, err := glacier.Write(context.Background(), d, []byte("glacier-only"), chunkstore.Metadata{})
	require.NoError(t, err)

	s, err := New([]chunkstore.Store{emptyPrimary}, []chunkstore.Store{glacier})
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Read(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []byte("glacier-only"), data)
}

func TestWriteReplicatesToGlacierAsync(t *testing.T) {
	primary := newMemStore()
	glacier := newMemStore()

	s, err := New([]chunkstore.Store{primary}, []chunkstore.Store{glacier})
	require.NoError(t, err)
	defer s.Close()

	d := testDigest(t, "replicated")
	_, err = s.Write(context.Background(), d, []byte("replicated"), chunkstore.Metadata{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		ok, _ := glacier.Exists(context.Background(), d)
		return ok
	}, time.Second, 10*time.Millisecond, "glacier replication must complete asynchronously")
}

func TestDeleteRemovesFromAllStores(t *testing.T) {
	primary := newMemStore()
	glacier := newMemStore()

	s, err := New([]chunkstore.Store{primary}, []chunkstore.Store{glacier})
	require.NoError(t, err)
	defer s.Close()

	d := testDigest(t, "doomed")
	_, err = s.Write(context.Background(), d, []byte("doomed"), chunkstore.Metadata{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		ok, _ := glacier.Exists(context.Background(), d)
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Delete(context.Background(), d))

	existsPrimary, _ := primary.Exists(context.Background(), d)
	existsGlacier, _ := glacier.Exists(context.Background(), d)
	assert.False(t, existsPrimary)
	assert.False(t, existsGlacier)
}
