package internal

import (
	"io"
	"strings"

	"github.com/goplus/unibuild/internal/build"
	"github.com/goplus/unibuild/internal/config"
	"github.com/goplus/unibuild/internal/env"
	"github.com/goplus/unibuild/internal/targets"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

var listCfg config.Config

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available targets",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listCfg.Root, "root", "", "build root directory (default: current directory)")
	listCmd.Flags().StringVar(&listCfg.Core, "core", "", "directory with shared deps and patches (default: build root)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd.Flags(), &listCfg, configPath); err != nil {
		return err
	}
	layout, err := listCfg.Layout()
	if err != nil {
		return err
	}
	return listTargets(cmd.OutOrStdout(), layout, targets.Default())
}

// listTargets prints one row per target with its last build, if any.
func listTargets(w io.Writer, layout env.Layout, reg *targets.Registry) error {
	tbl := tablewriter.NewTable(
		w,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders:  tw.BorderNone,
			Settings: tw.Settings{Separators: tw.Separators{BetweenColumns: tw.On}},
		})),
	)
	tbl.Header([]string{"Target", "Destination", "Archs", "Last Build"})
	var rows [][]any
	for _, t := range reg.All() {
		archs := "universal"
		if !t.MultiPlatform() {
			archs = "single"
		}
		rows = append(rows, []any{t.Name(), t.Destination().String(), archs, lastBuild(layout, t.Name())})
	}
	if err := tbl.Bulk(rows); err != nil {
		return err
	}
	return tbl.Render()
}

func lastBuild(layout env.Layout, name string) string {
	var last *build.Record
	for _, xcode := range []bool{false, true} {
		r, err := build.LoadRecord(layout.Build(name, xcode))
		if err != nil {
			continue
		}
		if last == nil || r.BuildTime.After(last.BuildTime) {
			last = r
		}
	}
	if last == nil {
		return "-"
	}
	parts := []string{last.BuildTime.Local().Format("2006-01-02 15:04")}
	if last.Version != "" {
		parts = append(parts, last.Version)
	}
	if len(last.Archs) > 0 {
		parts = append(parts, "("+strings.Join(last.Archs, ", ")+")")
	}
	if last.Xcode {
		parts = append(parts, "[xcode]")
	}
	return strings.Join(parts, " ")
}
