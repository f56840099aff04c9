package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bookvault/pkg/bookmarks"
	"bookvault/pkg/selectpull"
	"bookvault/pkg/transaction"
	"bookvault/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var (
	syncBookmarks []string
	syncAll       bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [remotes...]",
	Short: "Reconcile bookmarks with one or more remotes",
	Long: `Read each remote's published bookmark snapshot and absorb it: new bookmarks
are added, fast-forward moves are applied, and true divergence is parked
under a suffixed name instead of overwriting local work.

Without arguments, every remote configured under paths.* is synced.
Selective pull limits the names considered to the configured defaults plus
names you have accessed before; -B forces a specific name, --all disables
the filter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		aliases := BV.PathAliases()
		remotes := args
		if len(remotes) == 0 {
			for alias := range aliases {
				remotes = append(remotes, alias)
			}
			sort.Strings(remotes)
		}
		if len(remotes) == 0 {
			return fmt.Errorf("no remotes configured (set paths.* in config)")
		}

		// 1. 并发抓取所有远端的快照
		snapshots := make(map[string][]bookmarks.WireMark, len(remotes))
		var mu sync.Mutex
		eg, egctx := errgroup.WithContext(ctx)
		for _, remote := range remotes {
			remote := remote
			url, ok := aliases[remote]
			if !ok {
				// 参数也可以直接是路径
				url = remote
			}
			eg.Go(func() error {
				marks, err := fetchSnapshot(egctx, url)
				if err != nil {
					return fmt.Errorf("remote %s: %w", remote, err)
				}
				mu.Lock()
				snapshots[remote] = marks
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		// 2. 逐个远端吸收，书签状态的写入保持串行
		for _, remote := range remotes {
			if err := absorbRemote(ctx, remote, aliases[remote], snapshots[remote]); err != nil {
				return err
			}
		}
		return nil
	},
}

// fetchSnapshot 读取远端发布的二进制书签快照
// 传输层不在范围内: 远端就是一个路径 (或 file: URL)，快照是
// publish 写出的 bookmarks.bin。
func fetchSnapshot(ctx context.Context, url string) ([]bookmarks.WireMark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(strings.TrimPrefix(url, "file://"), "file:")
	data, err := os.ReadFile(filepath.Join(path, "bookmarks.bin"))
	if err != nil {
		return nil, err
	}
	return bookmarks.BinaryDecode(data)
}

func absorbRemote(ctx context.Context, remote, url string, snapshot []bookmarks.WireMark) error {
	fmt.Printf("🔄 Syncing with %s\n", remote)

	// 快照拆成两份视图: 存在的名字 (调和用)，和
	// 全量变更 (追踪缓存用，nil 表示远端已删除)
	present := make(map[string]types.CommitID)
	tracking := make(map[string]*types.CommitID)
	for _, m := range snapshot {
		if m.Target != nil {
			present[m.Name] = *m.Target
			tracking[m.Name] = m.Target
		} else {
			tracking[m.Name] = nil
		}
	}

	// selective pull: 只调和用户关心的名字
	considered := present
	explicit := syncBookmarks
	if !syncAll && viper.GetBool("remotenames.selectivepull") {
		accessed, err := BV.Accessed.NamesFor(ctx, types.RemotePath(remote))
		if err != nil {
			return err
		}
		matcher, err := selectpull.NewMatcher(
			BV.RepoPath,
			viper.GetStringSlice("remotenames.selectivepulldefault"),
			accessed,
		)
		if err != nil {
			return err
		}
		considered = make(map[string]types.CommitID)
		for name, id := range present {
			if matcher.Wants(name) {
				considered[name] = id
			}
		}
		for _, name := range explicit {
			if id, ok := present[name]; ok {
				considered[name] = id
			}
		}
	}

	// 1. 本地书签调和
	err := BV.Bookmarks.UpdateFromRemote(ctx, considered, url, func() (*transaction.Tx, error) {
		return BV.OpenTransaction(ctx)
	}, explicit, BV.PathAliases())
	if err != nil {
		return err
	}

	// 2. 更新远端追踪缓存 (全量快照，override)
	tx, err := BV.OpenTransaction(ctx)
	if err != nil {
		return err
	}
	if err := BV.RemoteNames.Save(ctx, tx, types.RemotePath(remote), tracking, true); err != nil {
		tx.Abort(ctx)
		return err
	}
	if err := tx.Close(ctx); err != nil {
		return err
	}

	// 3. 记下这次访问过的名字，下次 selective pull 继续关心它们
	if err := BV.Accessed.Update(ctx, types.RemotePath(remote), considered); err != nil {
		return err
	}

	fmt.Printf("✅ %s: %d bookmarks considered\n", remote, len(considered))
	return nil
}

func init() {
	syncCmd.Flags().StringArrayVarP(&syncBookmarks, "bookmark", "B", nil, "sync this bookmark even if outside the selective pull scope")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "consider every remote bookmark, ignoring selective pull")
	rootCmd.AddCommand(syncCmd)
}
