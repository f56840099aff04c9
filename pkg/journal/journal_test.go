package journal

import (
	"context"
	"crypto/sha1"
	"testing"

	"bookvault/pkg/storage/disk"
	"bookvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockID(input string) types.CommitID {
	return types.CommitID(sha1.Sum([]byte(input)))
}

func setupJournal(t *testing.T) *FileJournal {
	t.Helper()
	adapter, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	return NewFileJournal(adapter, "journal")
}

func TestFileJournal_AppendAndRead(t *testing.T) {
	ctx := context.Background()
	j := setupJournal(t)

	// 空日志读回空
	entries, err := j.ReadAll(ctx, KindRemoteBookmark)
	require.NoError(t, err)
	assert.Empty(t, entries)

	batch1 := []Entry{
		{Name: "default/main", Old: types.NullID, New: mockID("c1")},
		{Name: "default/dev", Old: mockID("c1"), New: mockID("c2")},
	}
	require.NoError(t, j.RecordMany(ctx, KindRemoteBookmark, batch1))

	// 第二批追加在后面
	batch2 := []Entry{{Name: "default/main", Old: mockID("c1"), New: mockID("c3")}}
	require.NoError(t, j.RecordMany(ctx, KindRemoteBookmark, batch2))

	entries, err = j.ReadAll(ctx, KindRemoteBookmark)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, batch1[0], entries[0])
	assert.Equal(t, batch1[1], entries[1])
	assert.Equal(t, batch2[0], entries[2])
}

func TestFileJournal_KindIsolation(t *testing.T) {
	ctx := context.Background()
	j := setupJournal(t)

	require.NoError(t, j.RecordMany(ctx, KindRemoteBookmark, []Entry{
		{Name: "default/main", New: mockID("c1")},
	}))
	require.NoError(t, j.RecordMany(ctx, "othertype", []Entry{
		{Name: "x", New: mockID("c2")},
	}))

	entries, err := j.ReadAll(ctx, KindRemoteBookmark)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "default/main", entries[0].Name)
}

func TestFileJournal_EmptyBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	j := setupJournal(t)

	require.NoError(t, j.RecordMany(ctx, KindRemoteBookmark, nil))

	entries, err := j.ReadAll(ctx, KindRemoteBookmark)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
