package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardd/internal/registry"
	"shardd/pkg/types"
)

func TestEnsureShard_FetchesAllowListedSetAndIsIdempotent(t *testing.T) {
	hub, srv := newFakeHub(t, "org/tiny", map[string][]byte{
		"config.json":       fill(100, 'c'),
		"model.safetensors": fill(900, 'w'),
		"README.md":         fill(50, 'r'),
	})
	cache := t.TempDir()
	d := New(NewHubSource(srv.URL, "", nil), fastConfig(cache))
	rec := &recorder{}
	d.OnProgress().Register("rec", rec.fn)
	shard := testShard("org/tiny")

	path, err := d.EnsureShard(context.Background(), shard, "test-engine")
	require.NoError(t, err)
	assert.Equal(t, registry.ModelDir(cache, "org/tiny"), path)
	assert.FileExists(t, filepath.Join(path, "config.json"))
	assert.FileExists(t, filepath.Join(path, "model.safetensors"))
	assert.NoFileExists(t, filepath.Join(path, "README.md"))
	assert.True(t, registry.IsComplete(path))

	st := d.ShardDownloadStatus("test-engine")[shard]
	assert.Equal(t, types.DownloadComplete, st.Status)
	assert.Equal(t, int64(1000), st.DownloadedBytes)
	assert.Equal(t, 1, rec.count(types.DownloadComplete))

	before := hub.requests()
	again, err := d.EnsureShard(context.Background(), shard, "test-engine")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, before, hub.requests(), "second call must not touch the hub")
}

func TestEnsureShard_ProgressIsMonotonicWithSingleComplete(t *testing.T) {
	src := &slowSource{
		files: map[string][]byte{
			"config.json":       fill(100, 'c'),
			"model.safetensors": fill(900, 'w'),
		},
		chunk: 50,
		delay: 2 * time.Millisecond,
	}
	cache := t.TempDir()
	d := New(src, fastConfig(cache))
	rec := &recorder{}
	d.OnProgress().Register("rec", rec.fn)

	path, err := d.EnsureShard(context.Background(), testShard("demo/model"), "e")
	require.NoError(t, err)

	events := rec.all()
	require.NotEmpty(t, events)
	var last int64
	completes := 0
	for _, ev := range events {
		if ev.Status == types.DownloadComplete {
			completes++
			continue
		}
		assert.Equal(t, int64(1000), ev.TotalBytes)
		assert.GreaterOrEqual(t, ev.DownloadedBytes, last)
		last = ev.DownloadedBytes
	}
	assert.Equal(t, 1, completes)
	assert.Equal(t, int64(1000), last, "monitor stops at the first sample reaching the total")
	assert.Equal(t, types.DownloadComplete, events[len(events)-1].Status)

	weights, err := os.ReadFile(filepath.Join(path, "model.safetensors"))
	require.NoError(t, err)
	assert.Len(t, weights, 900)
}

func TestEnsureShard_RepositoryNotFound(t *testing.T) {
	_, srv := newFakeHub(t, "org/exists", map[string][]byte{"model.safetensors": fill(10, 'w')})
	d := New(NewHubSource(srv.URL, "", nil), fastConfig(t.TempDir()))
	rec := &recorder{}
	d.OnProgress().Register("rec", rec.fn)
	shard := testShard("org/missing")

	_, err := d.EnsureShard(context.Background(), shard, "e")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "hub token")
	assert.Equal(t, types.DownloadError, d.Status("e", shard).Status)
	assert.Equal(t, 1, rec.count(types.DownloadError))
}

func TestEnsureShard_NoWeightsAfterTransfer(t *testing.T) {
	_, srv := newFakeHub(t, "org/cfg-only", map[string][]byte{"config.json": fill(10, 'c')})
	d := New(NewHubSource(srv.URL, "", nil), fastConfig(t.TempDir()))

	_, err := d.EnsureShard(context.Background(), testShard("org/cfg-only"), "e")
	require.Error(t, err)
	assert.True(t, IsMissingArtifact(err))
}

func TestEnsureShard_LocalPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model-00001.safetensors"), fill(42, 'w'), 0o644))
	d := New(failingSource{t}, fastConfig(t.TempDir()))
	shard := testShard(dir)

	path, err := d.EnsureShard(context.Background(), shard, "e")
	require.NoError(t, err)
	assert.Equal(t, dir, path)
	assert.Equal(t, types.DownloadComplete, d.Status("e", shard).Status)

	empty := t.TempDir()
	_, err = d.EnsureShard(context.Background(), testShard(empty), "e")
	assert.True(t, IsMissingArtifact(err))

	_, err = d.EnsureShard(context.Background(), testShard(filepath.Join(empty, "nope")), "e")
	assert.True(t, IsNotFound(err))
}

func TestEnsureShard_QuickCheckTrustsLocalWeights(t *testing.T) {
	cache := t.TempDir()
	dir := registry.ModelDir(cache, "org/quick")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weights.safetensors"), fill(8, 'w'), 0o644))

	cfg := fastConfig(cache)
	cfg.QuickCheck = true
	d := New(failingSource{t}, cfg)
	path, err := d.EnsureShard(context.Background(), testShard("org/quick"), "e")
	require.NoError(t, err)
	assert.Equal(t, dir, path)

	hub, srv := newFakeHub(t, "org/quick", map[string][]byte{"weights.safetensors": fill(8, 'w')})
	d = New(NewHubSource(srv.URL, "", nil), fastConfig(cache))
	_, err = d.EnsureShard(context.Background(), testShard("org/quick"), "e")
	require.NoError(t, err)
	assert.Equal(t, int64(1), hub.listCalls.Load(), "without quick check the hub is consulted")
	assert.Equal(t, int64(0), hub.fetchCalls.Load(), "file of the expected size is skipped")
}

func TestEnsureShard_ResumesPartialFile(t *testing.T) {
	content := fill(1000, 'w')
	copy(content[500:], fill(500, 'x'))
	hub, srv := newFakeHub(t, "org/resume", map[string][]byte{"model.safetensors": content})
	cache := t.TempDir()
	dir := registry.ModelDir(cache, "org/resume")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.safetensors"+partialSuffix), content[:500], 0o644))

	d := New(NewHubSource(srv.URL, "", nil), fastConfig(cache))
	path, err := d.EnsureShard(context.Background(), testShard("org/resume"), "e")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(path, "model.safetensors"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, []string{"model.safetensors bytes=500-"}, hub.seenRanges())
	assert.NoFileExists(t, filepath.Join(path, "model.safetensors"+partialSuffix))
}

func TestEnsureShard_Timeout(t *testing.T) {
	hub, srv := newFakeHub(t, "org/slow", nil)
	hub.block = true
	cfg := fastConfig(t.TempDir())
	cfg.Timeout = 50 * time.Millisecond
	d := New(NewHubSource(srv.URL, "", nil), cfg)

	_, err := d.EnsureShard(context.Background(), testShard("org/slow"), "e")
	require.Error(t, err)
	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "timeout", te.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnsureShard_ConcurrentCallersShareOneAcquisition(t *testing.T) {
	src := &slowSource{
		files: map[string][]byte{"model.safetensors": fill(400, 'w')},
		chunk: 40,
		delay: 5 * time.Millisecond,
	}
	counting := &countingSource{Source: src}
	d := New(counting, fastConfig(t.TempDir()))
	a := testShard("org/shared")
	b := types.Shard{ModelID: "org/shared", StartLayer: 4, EndLayer: 7, NLayers: 8}

	var wg sync.WaitGroup
	paths := make([]string, 2)
	errs := make([]error, 2)
	for i, s := range []types.Shard{a, b} {
		i, s := i, s
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], errs[i] = d.EnsureShard(context.Background(), s, "e")
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, paths[0], paths[1])
	assert.Equal(t, int64(1), counting.lists.Load())
	status := d.ShardDownloadStatus("e")
	assert.Equal(t, types.DownloadComplete, status[a].Status)
	assert.Equal(t, types.DownloadComplete, status[b].Status)
}

func TestEnsureShard_InvalidShard(t *testing.T) {
	d := New(failingSource{t}, fastConfig(t.TempDir()))
	_, err := d.EnsureShard(context.Background(), types.Shard{ModelID: "x", StartLayer: 2, EndLayer: 1, NLayers: 4}, "e")
	assert.Error(t, err)
}

func TestShardDownloadStatus_UnknownEngineIsEmpty(t *testing.T) {
	d := New(failingSource{t}, fastConfig(t.TempDir()))
	assert.Empty(t, d.ShardDownloadStatus("nobody"))
	assert.Equal(t, types.DownloadNotStarted, d.Status("nobody", testShard("m")).Status)
}
