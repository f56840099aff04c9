package commands

import (
	"errors"
	"fmt"

	"bookvault/pkg/meta"
	"bookvault/pkg/transaction"
	"bookvault/pkg/types"

	"github.com/spf13/cobra"
)

var commitPred string

// commit 是图的写入口：登记一个新提交并把 HEAD 挪过去。
// 提交本体 (文件内容) 由别的系统负责，这里只维护图和指针。
var commitCmd = &cobra.Command{
	Use:   "commit <hash>",
	Short: "Record a commit in the graph and advance HEAD",
	Long: `Register a commit id with the current HEAD as its parent, move HEAD to it,
and let the active bookmark follow. With --pred, additionally records that
the new commit rewrites (amends/rebases) the given predecessor.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		node, err := types.ParseCommitID(args[0])
		if err != nil {
			return err
		}

		// 1. 当前 HEAD 即父提交；全新仓库没有父
		var parents []types.CommitID
		var oldVersion int64
		head, err := BV.Meta.GetRef(ctx, "HEAD")
		switch {
		case err == nil:
			id, err := types.ParseCommitID(head.CommitHash)
			if err != nil {
				return err
			}
			parents = append(parents, id)
			oldVersion = head.Version
		case errors.Is(err, meta.ErrRefNotFound):
			// 初始提交
		default:
			return err
		}

		// 2. 登记进提交图
		if err := BV.Meta.AddCommit(ctx, node, parents); err != nil {
			return err
		}
		if commitPred != "" {
			pred, err := types.ParseCommitID(commitPred)
			if err != nil {
				return err
			}
			if err := BV.Meta.AddMutation(ctx, pred, node); err != nil {
				return err
			}
		}

		// 3. CAS 移动 HEAD，并发的提交会输掉这一步
		if err := BV.Meta.UpdateRef(ctx, "HEAD", node, oldVersion); err != nil {
			return err
		}

		// 4. 活动书签跟上
		moved, err := BV.Bookmarks.Update(ctx, func() (*transaction.Tx, error) {
			return BV.OpenTransaction(ctx)
		}, parents, node)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Recorded commit %s\n", node.Short())
		if moved {
			fmt.Printf("   bookmark %s moved along\n", BV.Bookmarks.Active())
		}
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVar(&commitPred, "pred", "", "commit id this one rewrites (amend/rebase)")
	rootCmd.AddCommand(commitCmd)
}
