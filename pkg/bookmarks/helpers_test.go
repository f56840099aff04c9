package bookmarks

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"bookvault/pkg/storage"
	"bookvault/pkg/storage/disk"
	"bookvault/pkg/transaction"
	"bookvault/pkg/types"
)

// fakeGraph 是测试用的内存提交图
type fakeGraph struct {
	order      map[types.CommitID]int64
	parents    map[types.CommitID][]types.CommitID
	successors map[types.CommitID][]types.CommitID
	mutation   bool
	checkout   types.CommitID
	refreshed  int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		order:      make(map[types.CommitID]int64),
		parents:    make(map[types.CommitID][]types.CommitID),
		successors: make(map[types.CommitID][]types.CommitID),
		checkout:   types.NullID,
	}
}

func (g *fakeGraph) addCommit(id types.CommitID, parents ...types.CommitID) {
	g.order[id] = int64(len(g.order) + 1)
	g.parents[id] = parents
}

func (g *fakeGraph) addSuccessor(pred, succ types.CommitID) {
	g.successors[pred] = append(g.successors[pred], succ)
}

func (g *fakeGraph) Resolve(_ context.Context, id types.CommitID) (bool, error) {
	_, ok := g.order[id]
	return ok, nil
}

func (g *fakeGraph) IsDescendant(_ context.Context, anc, desc types.CommitID) (bool, error) {
	queue := []types.CommitID{desc}
	seen := map[types.CommitID]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == anc {
			return true, nil
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, g.parents[cur]...)
	}
	return false, nil
}

func (g *fakeGraph) InForeground(ctx context.Context, base, candidate types.CommitID) (bool, error) {
	closure := []types.CommitID{base}
	seen := map[types.CommitID]bool{base: true}
	for i := 0; i < len(closure); i++ {
		for _, succ := range g.successors[closure[i]] {
			if !seen[succ] {
				seen[succ] = true
				closure = append(closure, succ)
			}
		}
	}
	for _, member := range closure {
		ok, err := g.IsDescendant(ctx, member, candidate)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (g *fakeGraph) MutationEnabled() bool { return g.mutation }

func (g *fakeGraph) CheckoutID(_ context.Context) (types.CommitID, error) {
	return g.checkout, nil
}

func (g *fakeGraph) RevOrder(_ context.Context, id types.CommitID) (int64, error) {
	ord, ok := g.order[id]
	if !ok {
		return 0, fmt.Errorf("unknown commit %s", id.Short())
	}
	return ord, nil
}

func (g *fakeGraph) Refresh(_ context.Context) error {
	g.refreshed++
	return nil
}

func mkID(b byte) types.CommitID {
	var id types.CommitID
	for i := range id {
		id[i] = b
	}
	return id
}

func idPtr(id types.CommitID) *types.CommitID { return &id }

// testEnv 把一次测试需要的全部协作者装在一起
type testEnv struct {
	files  storage.Store
	graph  *fakeGraph
	store  *Store
	status *bytes.Buffer
	warns  *bytes.Buffer
}

func newTestEnv(t *testing.T, g *fakeGraph) *testEnv {
	t.Helper()
	files, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	status := &bytes.Buffer{}
	warns := &bytes.Buffer{}
	st, err := Load(context.Background(), files, g, NewReporter(status, warns))
	require.NoError(t, err)
	return &testEnv{files: files, graph: g, store: st, status: status, warns: warns}
}

func (e *testEnv) openTx(t *testing.T) *transaction.Tx {
	t.Helper()
	tx, err := transaction.Open(context.Background(), e.files, "bookmarks")
	require.NoError(t, err)
	return tx
}

// apply 在一个事务里应用一批变更并提交
func (e *testEnv) apply(t *testing.T, changes ...Change) {
	t.Helper()
	ctx := context.Background()
	tx := e.openTx(t)
	require.NoError(t, e.store.ApplyChanges(ctx, tx, changes))
	require.NoError(t, tx.Close(ctx))
}

// reload 从持久文件重新读出一个全新的 Store
func (e *testEnv) reload(t *testing.T) *Store {
	t.Helper()
	st, err := Load(context.Background(), e.files, e.graph, NewReporter(e.status, e.warns))
	require.NoError(t, err)
	return st
}
