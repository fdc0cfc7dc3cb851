package ball

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mono-ball/ball/pkg/common"
)

// SetLogLevel configures the logging verbosity for the ball library.
// Valid levels: "debug", "info", "warn", "error", "disabled"
func SetLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "disabled", "none", "off":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level %q: must be one of: debug, info, warn, error, disabled", level)
	}
	return nil
}

type CreateOptions struct {
	InputPath        string
	OutputPath       string
	CompressionLevel int // defaults to 1 when zero
	Progress         common.ProgressFunc
}

type ExtractOptions struct {
	InputFile  string
	OutputPath string
}

// CreateArchive packs a directory into a single ball file.
func CreateArchive(ctx context.Context, options CreateOptions) error {
	log.Info().Msgf("creating archive from %s to %s", options.InputPath, options.OutputPath)

	level := options.CompressionLevel
	if level == 0 {
		level = 1
	}

	a := NewBallArchiver()
	err := a.Create(ctx, BallArchiverOptions{
		SourcePath:       options.InputPath,
		OutputFile:       options.OutputPath,
		CompressionLevel: level,
		Progress:         options.Progress,
	})
	if err != nil {
		return err
	}

	log.Info().Msg("archive created successfully")
	return nil
}

// ExtractArchive unpacks every entry of a ball file into a directory.
func ExtractArchive(options ExtractOptions) error {
	log.Info().Msgf("extracting archive: %s", options.InputFile)

	a := NewBallArchiver()
	err := a.Extract(BallArchiverOptions{
		ArchivePath: options.InputFile,
		OutputPath:  options.OutputPath,
	})
	if err != nil {
		return err
	}

	log.Info().Msg("archive extracted successfully")
	return nil
}
