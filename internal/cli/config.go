package cli

import (
	"fmt"
	"io"

	"github.com/benmeehan/ortho-monitor/internal/utils"
	"github.com/benmeehan/ortho-monitor/pkg/file"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// loadConfig reads --config. A missing file is only tolerated for the default path.
func loadConfig(cmd *cobra.Command) (*utils.Config, error) {
	fileClient := file.NewFileService()

	exists, err := fileClient.IsFileExists(configFlag)
	if err != nil {
		return nil, err
	}
	if !exists {
		if cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("config file %s not found", configFlag)
		}
		return utils.DefaultConfig(), nil
	}

	return utils.LoadConfig(configFlag, fileClient)
}

// newLogger builds the process logger from the logging section.
func newLogger(out io.Writer, level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
