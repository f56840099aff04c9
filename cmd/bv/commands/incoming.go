package commands

import (
	"fmt"

	"bookvault/pkg/types"

	"github.com/spf13/cobra"
)

// remoteSnapshotMarks 读取并展平一个远端的快照 (只要存在的名字)
func remoteSnapshotMarks(cmd *cobra.Command, remote string) (map[string]types.CommitID, error) {
	url, ok := BV.PathAliases()[remote]
	if !ok {
		url = remote
	}
	snapshot, err := fetchSnapshot(cmd.Context(), url)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", remote, err)
	}
	marks := make(map[string]types.CommitID)
	for _, m := range snapshot {
		if m.Target != nil {
			marks[m.Name] = *m.Target
		}
	}
	return marks, nil
}

var incomingCmd = &cobra.Command{
	Use:   "incoming <remote>",
	Short: "Show bookmarks the remote has that we lack or trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		marks, err := remoteSnapshotMarks(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("searching for changed bookmarks\n")
		n, err := BV.Bookmarks.Incoming(cmd.Context(), marks)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("no changed bookmarks found")
		}
		return nil
	},
}

var outgoingCmd = &cobra.Command{
	Use:   "outgoing <remote>",
	Short: "Show bookmarks we have that the remote lacks or trails",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		marks, err := remoteSnapshotMarks(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("searching for changed bookmarks\n")
		n, err := BV.Bookmarks.Outgoing(cmd.Context(), marks)
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("no changed bookmarks found")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(incomingCmd)
	rootCmd.AddCommand(outgoingCmd)
}
