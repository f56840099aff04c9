package commands

import (
	"fmt"

	"bookvault/pkg/types"

	"github.com/spf13/cobra"
)

var (
	bmRev      string
	bmDelete   bool
	bmRename   string
	bmForce    bool
	bmInactive bool
)

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark [names...]",
	Short: "Create, move, rename, delete or list bookmarks",
	Long: `Bookmarks are named pointers into the commit graph that move with your work.

Without arguments, lists all bookmarks. With names, creates them (or moves
them with -f) at the current checkout, or at -r REV. The first created name
becomes the active bookmark and follows new commits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// 互斥动作检查
		if bmDelete && bmRename != "" {
			return fmt.Errorf("--delete and --rename are incompatible")
		}
		if bmRev != "" && (bmDelete || bmRename != "") {
			return fmt.Errorf("--rev is only valid when adding bookmarks")
		}

		switch {
		case bmDelete:
			if len(args) == 0 {
				return fmt.Errorf("bookmark name required")
			}
			names, err := expandAll(args)
			if err != nil {
				return err
			}
			tx, err := BV.OpenTransaction(ctx)
			if err != nil {
				return err
			}
			if err := BV.Bookmarks.Delete(ctx, tx, names); err != nil {
				tx.Abort(ctx)
				return err
			}
			return tx.Close(ctx)

		case bmRename != "":
			if len(args) != 1 {
				return fmt.Errorf("new bookmark name required")
			}
			old, err := BV.Bookmarks.ExpandName(bmRename)
			if err != nil {
				return err
			}
			tx, err := BV.OpenTransaction(ctx)
			if err != nil {
				return err
			}
			if err := BV.Bookmarks.Rename(ctx, tx, old, args[0], bmForce, bmInactive); err != nil {
				tx.Abort(ctx)
				return err
			}
			return tx.Close(ctx)

		case len(args) > 0:
			var rev *types.CommitID
			if bmRev != "" {
				id, err := types.ParseCommitID(bmRev)
				if err != nil {
					return err
				}
				rev = &id
			}
			tx, err := BV.OpenTransaction(ctx)
			if err != nil {
				return err
			}
			if err := BV.Bookmarks.Add(ctx, tx, args, rev, bmForce, bmInactive); err != nil {
				tx.Abort(ctx)
				return err
			}
			return tx.Close(ctx)

		default:
			return listBookmarks()
		}
	},
}

// expandAll 把参数里的 "." 换成活动书签
func expandAll(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, a := range args {
		name, err := BV.Bookmarks.ExpandName(a)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func listBookmarks() error {
	names := BV.Bookmarks.Names()
	if len(names) == 0 {
		fmt.Println("no bookmarks set")
		return nil
	}
	active := BV.Bookmarks.Active()
	for _, name := range names {
		id, _ := BV.Bookmarks.Get(name)
		marker := "  "
		if name == active {
			marker = "* "
		}
		fmt.Printf(" %s%-25s %s\n", marker, name, id.Short())
	}
	return nil
}

func init() {
	bookmarkCmd.Flags().StringVarP(&bmRev, "rev", "r", "", "revision the bookmark should point to")
	bookmarkCmd.Flags().BoolVarP(&bmDelete, "delete", "d", false, "delete the given bookmarks")
	bookmarkCmd.Flags().StringVarP(&bmRename, "rename", "m", "", "rename this bookmark ('.' for the active one)")
	bookmarkCmd.Flags().BoolVarP(&bmForce, "force", "f", false, "allow overwriting an existing bookmark")
	bookmarkCmd.Flags().BoolVarP(&bmInactive, "inactive", "i", false, "do not activate the new bookmark")
	rootCmd.AddCommand(bookmarkCmd)
}
