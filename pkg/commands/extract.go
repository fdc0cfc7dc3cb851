package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mono-ball/ball/pkg/ball"
)

var extractOpts = &ball.ExtractOptions{}

var ExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract an archive to the specified path",
	RunE:  runExtract,
}

func init() {
	ExtractCmd.Flags().StringVarP(&extractOpts.InputFile, "input", "i", "", "Archive to extract")
	ExtractCmd.Flags().StringVarP(&extractOpts.OutputPath, "output", "o", ".", "Output path for the extraction")
	ExtractCmd.MarkFlagRequired("input")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := ball.ExtractArchive(*extractOpts); err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	return nil
}
