package commands

import (
	"errors"
	"fmt"

	"bookvault/pkg/meta"
	"bookvault/pkg/types"

	"github.com/spf13/cobra"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <hash|bookmark>",
	Short: "Move HEAD to a commit or bookmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// 参数优先当书签名解析，其次当提交号
		var node types.CommitID
		var viaBookmark string
		if name, err := BV.Bookmarks.ExpandName(args[0]); err == nil {
			if id, ok := BV.Bookmarks.Get(name); ok {
				node = id
				viaBookmark = name
			}
		}
		if viaBookmark == "" {
			id, err := types.ParseCommitID(args[0])
			if err != nil {
				return fmt.Errorf("'%s' is neither a bookmark nor a commit id", args[0])
			}
			node = id
		}

		known, err := BV.Graph.Resolve(ctx, node)
		if err != nil {
			return err
		}
		if !known {
			return fmt.Errorf("unknown commit %s", node.Short())
		}

		var oldVersion int64
		head, err := BV.Meta.GetRef(ctx, "HEAD")
		if err != nil && !errors.Is(err, meta.ErrRefNotFound) {
			return err
		}
		if err == nil {
			oldVersion = head.Version
		}
		if err := BV.Meta.UpdateRef(ctx, "HEAD", node, oldVersion); err != nil {
			return err
		}

		// 通过书签名检出时激活它，否则退回匿名状态
		if viaBookmark != "" {
			if err := BV.Bookmarks.Activate(ctx, viaBookmark); err != nil {
				return err
			}
			fmt.Printf("✅ Checked out bookmark %s at %s\n", viaBookmark, node.Short())
			return nil
		}
		if BV.Bookmarks.Active() != "" {
			if err := BV.Bookmarks.Deactivate(ctx); err != nil {
				return err
			}
		}
		fmt.Printf("✅ Checked out %s\n", node.Short())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkoutCmd)
}
