package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/goplus/unibuild/internal/config"
	"github.com/goplus/unibuild/internal/env"
	"github.com/goplus/unibuild/internal/xexec"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "unibuild",
	Short: "unibuild builds universal macOS libraries and tools",
	Long: `unibuild builds a target once per CPU architecture, merges the results
into a universal tree and makes the installed binaries relocatable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default: <root>/"+config.FileName+")")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return 2
	}
	if code := xexec.ExitCode(err); code > 0 {
		return code
	}
	return 1
}

// loadConfig merges the configuration file under the flags explicitly
// set in fs. cfg holds the flag values on entry.
func loadConfig(fs *pflag.FlagSet, cfg *config.Config, path string) error {
	required := path != ""
	if !required {
		root := cfg.Root
		if root == "" {
			wd, err := env.WorkDir()
			if err != nil {
				return err
			}
			root = wd
		}
		path = filepath.Join(root, config.FileName)
	}
	file, err := config.Load(path, required)
	if err != nil {
		return err
	}
	return cfg.Overlay(file, fs)
}
