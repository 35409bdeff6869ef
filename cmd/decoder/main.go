package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"png.adpollak.net/internal/config"
	"png.adpollak.net/internal/logging"
)

var DecoderCommand = &cobra.Command{
	Use:   "decoder",
	Short: "Inspect and decode PNG files",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			fmt.Printf("Unknown log level '%s'.\n\n", logLevel)
			cmd.Usage()
			os.Exit(1)
		}
		config.Config.LogLevel = level
		logging.SetLevel(level)

		if cmd.Flags().Changed("ignore-crc") {
			config.Config.IgnoreChecksums = ignoreCRC
		}
	},
}

var (
	logLevel  string
	ignoreCRC bool
)

func init() {
	DecoderCommand.PersistentFlags().StringVar(&logLevel, "log-level", config.Config.LogLevel.String(), "zerolog level: trace, debug, info, warn, error")
	DecoderCommand.PersistentFlags().BoolVar(&ignoreCRC, "ignore-crc", config.Config.IgnoreChecksums, "accept chunks whose CRC does not match")
}

// pngPath picks the file argument, falling back to ~/Pictures/smiley.png.
func pngPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	// Used for default file in cmd line args.
	home, err := os.UserHomeDir()
	if err != nil {
		logging.Error().Err(err).Msg("no file given and no home directory to default to")
		os.Exit(1)
	}
	return filepath.Join(home, "Pictures", "smiley.png")
}

func main() {
	defer logging.LogPanics(nil)

	if err := DecoderCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
