package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mono-ball/ball/pkg/ball"
	"github.com/mono-ball/ball/pkg/commands"
)

const (
	defaultLogLevel         = "info"
	defaultCompressionLevel = 1
)

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := ball.SetLogLevel(getEnvString("BALL_LOG_LEVEL", defaultLogLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "ball",
		Short:         "ball - MonoBall mod archive tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(commands.CreateCmd, commands.ExtractCmd, commands.ListCmd, commands.ReadCmd)

	if lvl := getEnvInt("BALL_COMPRESSION_LEVEL", defaultCompressionLevel); lvl != defaultCompressionLevel {
		commands.CreateCmd.Flags().Set("level", strconv.Itoa(lvl))
	}

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
