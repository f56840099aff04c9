package commands

import (
	"fmt"
	"sort"

	"bookvault/pkg/journal"

	"github.com/spf13/cobra"
)

var remoteBookmarksCmd = &cobra.Command{
	Use:   "remote-bookmarks",
	Short: "List the locally tracked remote bookmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := BV.RemoteNames.Items(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("no remote bookmarks tracked")
			return nil
		}
		names := make([]string, 0, len(items))
		for name := range items {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("   %-25s %s\n", name, items[name].Short())
		}
		return nil
	},
}

var undoLogCmd = &cobra.Command{
	Use:   "undo-log",
	Short: "Show the remote bookmark movements recorded by past syncs",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := BV.Journal.ReadAll(cmd.Context(), journal.KindRemoteBookmark)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("journal is empty")
			return nil
		}
		for _, e := range entries {
			from, to := "(none)", "(deleted)"
			if !e.Old.IsNull() {
				from = e.Old.Short()
			}
			if !e.New.IsNull() {
				to = e.New.Short()
			}
			fmt.Printf("   %-25s %s -> %s\n", e.Name, from, to)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remoteBookmarksCmd)
	rootCmd.AddCommand(undoLogCmd)
}
