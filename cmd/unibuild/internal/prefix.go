package internal

import (
	"fmt"
	"os"

	"github.com/goplus/unibuild/internal/config"
	"github.com/goplus/unibuild/internal/console"
	"github.com/goplus/unibuild/internal/env"
	"github.com/goplus/unibuild/internal/prefix"
	"github.com/spf13/cobra"
)

var prefixCfg config.Config

var prefixCmd = &cobra.Command{
	Use:   "prefix",
	Short: "Synchronize the shared prefix with the installed dependencies",
	Args:  cobra.NoArgs,
	RunE:  runPrefix,
}

func init() {
	prefixCmd.Flags().StringVar(&prefixCfg.Root, "root", "", "build root directory (default: current directory)")
	prefixCmd.Flags().StringVar(&prefixCfg.Core, "core", "", "directory with shared deps and patches (default: build root)")
	prefixCmd.Flags().BoolVarP(&prefixCfg.Verbose, "verbose", "v", false, "print synchronization details")
	rootCmd.AddCommand(prefixCmd)
}

func runPrefix(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd.Flags(), &prefixCfg, configPath); err != nil {
		return err
	}
	layout, err := prefixCfg.Layout()
	if err != nil {
		return err
	}
	stats, err := syncPrefix(layout)
	if err != nil {
		return err
	}
	console.New(cmd.OutOrStdout(), prefixCfg.Verbose).Infof("%s: %s", layout.Prefix(), stats)
	return nil
}

func syncPrefix(layout env.Layout) (prefix.Stats, error) {
	if err := os.MkdirAll(layout.Prefix(), 0o755); err != nil {
		return prefix.Stats{}, err
	}
	srcs, err := prefix.Sources(layout.CoreDeps(), layout.Deps())
	if err != nil {
		return prefix.Stats{}, fmt.Errorf("list dependencies: %w", err)
	}
	return prefix.Sync(srcs, layout.Prefix())
}
