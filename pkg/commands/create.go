package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mono-ball/ball/pkg/ball"
	"github.com/mono-ball/ball/pkg/common"
)

var createOpts = &ball.CreateOptions{}
var createProgress bool

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Pack a mod directory into a single archive",
	RunE:  runCreate,
}

func init() {
	CreateCmd.Flags().StringVarP(&createOpts.InputPath, "input", "i", "", "Mod directory to archive")
	CreateCmd.Flags().StringVarP(&createOpts.OutputPath, "output", "o", "mod.ball", "Output file for the archive")
	CreateCmd.Flags().IntVarP(&createOpts.CompressionLevel, "level", "l", 1, "Compression level (1-9)")
	CreateCmd.Flags().BoolVarP(&createProgress, "progress", "p", false, "Log per-file progress")
	CreateCmd.MarkFlagRequired("input")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if createProgress {
		createOpts.Progress = func(p common.Progress) {
			log.Info().Msgf("[%d/%d] %s (%d/%d bytes)", p.Index, p.Total, p.Path, p.BytesProcessed, p.TotalBytes)
		}
	}
	if err := ball.CreateArchive(cmd.Context(), *createOpts); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	return nil
}
