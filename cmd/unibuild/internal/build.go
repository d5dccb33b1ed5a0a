package internal

import (
	"github.com/goplus/unibuild/internal/build"
	"github.com/goplus/unibuild/internal/config"
	"github.com/goplus/unibuild/internal/console"
	"github.com/spf13/cobra"
)

var buildCfg config.Config

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a target",
	Long: `Build compiles a target, selected by name with --target or detected from
a source tree given with --source, for every enabled architecture.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCfg.BindFlags(buildCmd.Flags())
	buildCmd.MarkFlagsMutuallyExclusive("target", "source")
	buildCmd.MarkFlagsMutuallyExclusive("disable-x64", "disable-arm")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd.Flags(), &buildCfg, configPath); err != nil {
		return err
	}
	b := build.New(build.Options{
		Config:  &buildCfg,
		Console: console.Stdout(buildCfg.Verbose),
	})
	return b.Run(cmd.Context())
}
