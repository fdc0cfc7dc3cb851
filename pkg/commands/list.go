package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mono-ball/ball/pkg/ball"
)

var ListCmd = &cobra.Command{
	Use:   "list <archive>",
	Short: "List the entries of an archive without reading payloads",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	archive, err := ball.Open(args[0])
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	defer archive.Close()

	for _, entry := range archive.ListEntries() {
		fmt.Fprintf(cmd.OutOrStdout(), "%12d  %12d  %s\n", entry.UncompressedSize, entry.CompressedSize, entry.Path)
	}
	return nil
}
