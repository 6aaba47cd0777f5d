package boot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSnapshotStore struct {
	latestKey   string
	latestFound bool
	downloaded  []string
}

func (f *fakeSnapshotStore) Latest(ctx context.Context, bucket, prefix string) (string, bool, error) {
	return f.latestKey, f.latestFound, nil
}

func (f *fakeSnapshotStore) Download(ctx context.Context, bucket, key, destPath string) error {
	f.downloaded = append(f.downloaded, key+"->"+destPath)
	return nil
}

func TestFetchLatestSnapshotDownloadsWhenFound(t *testing.T) {
	store := &fakeSnapshotStore{latestKey: "cluster-1/snap-42.gz", latestFound: true}
	cfg := &Config{ClusterID: "cluster-1", RaftSnapshotPath: t.TempDir()}

	found, err := FetchLatestSnapshot(context.Background(), store, "snap-bucket", cfg)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, store.downloaded, 1)
	require.Equal(t, "cluster-1/snap-42.gz->"+filepath.Join(cfg.RaftSnapshotPath, "snapshot.gz"), store.downloaded[0])
}

func TestFetchLatestSnapshotReturnsFalseWhenNoneExist(t *testing.T) {
	store := &fakeSnapshotStore{latestFound: false}
	cfg := &Config{ClusterID: "cluster-1", RaftSnapshotPath: t.TempDir()}

	found, err := FetchLatestSnapshot(context.Background(), store, "snap-bucket", cfg)
	require.NoError(t, err)
	require.False(t, found)
	require.Empty(t, store.downloaded)
}
