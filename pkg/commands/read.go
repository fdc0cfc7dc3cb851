package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mono-ball/ball/pkg/ball"
)

var ReadCmd = &cobra.Command{
	Use:   "read <archive> <path>",
	Short: "Print a single entry's content to stdout",
	Args:  cobra.ExactArgs(2),
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	archive, err := ball.Open(args[0])
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	defer archive.Close()

	raw, err := archive.ReadEntry(args[1])
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	if _, err := cmd.OutOrStdout().Write(raw); err != nil {
		return err
	}
	return nil
}
