package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"bookvault/pkg/bookmarks"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <dir>",
	Short: "Write a bookmark snapshot other repositories can sync from",
	Long: `Export the publishable bookmarks (local divergence markers are hidden) as a
binary snapshot at <dir>/bookmarks.bin. Point another repository's paths.*
entry at <dir> and its 'bv sync' will pick the snapshot up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listed, err := BV.Bookmarks.List(ctx)
		if err != nil {
			return err
		}
		marks := make([]bookmarks.WireMark, 0, len(listed))
		for name, id := range listed {
			idCopy := id
			marks = append(marks, bookmarks.WireMark{Name: name, Target: &idCopy})
		}
		// 快照字节级确定，同一状态重复 publish 产出相同文件
		sort.Slice(marks, func(i, j int) bool { return marks[i].Name < marks[j].Name })

		data, err := bookmarks.BinaryEncode(marks)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(args[0], 0755); err != nil {
			return err
		}
		out := filepath.Join(args[0], "bookmarks.bin")
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}

		fmt.Printf("✅ Published %d bookmarks to %s\n", len(marks), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
