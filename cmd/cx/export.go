package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cx-go/internal/cx"
)

// printStage renders one progress stage.
func printStage(s cx.Stage) {
	cyan := color.New(color.FgCyan)
	cyan.Printf("[%3d%%] ", s.Percent())
	fmt.Println(s.Message())
}

func printSummary(s *cx.ExportSummary) {
	yellow := color.New(color.FgYellow)
	for _, w := range s.Warnings {
		yellow.Printf("warning: %s\n", w)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("Codebase exported successfully to %s\n", s.OutputPath)
	fmt.Printf("%d file(s), %s\n", s.FilesCount, humanize.Bytes(uint64(s.Bytes)))
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export [PROJECT_ID]",
	Short: "Export a project, or an ad hoc tree with --root",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		if len(args) == 0 && root == "" {
			return fmt.Errorf("pass a project ID or --root")
		}
		if len(args) > 0 && root != "" {
			return fmt.Errorf("pass either a project ID or --root, not both")
		}

		a, _, err := newApp(cmd.Context(), "ExportProject")
		if err != nil {
			return err
		}
		defer a.Close()

		var summary *cx.ExportSummary
		if len(args) > 0 {
			summary, err = a.ExportProject(cmd.Context(), args[0], printStage)
		} else {
			req := cx.ExportRequest{RootFolder: root}
			req.ExportPath, _ = cmd.Flags().GetString("export-path")
			req.ExportFileName, _ = cmd.Flags().GetString("file-name")
			req.IgnoredFolders, _ = cmd.Flags().GetStringSlice("ignore-folder")
			req.IgnoredFiles, _ = cmd.Flags().GetStringSlice("ignore-file")
			req.IgnoredFileTypes, _ = cmd.Flags().GetStringSlice("ignore-type")
			summary, err = a.ExportTree(cmd.Context(), req, printStage)
		}
		if err != nil {
			color.New(color.FgRed).Println("Export failed")
			return err
		}

		printSummary(summary)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View export history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, _, err := newApp(cmd.Context(), "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No exports recorded.")
			return nil
		}

		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		for _, run := range runs {
			duration := ""
			if run.FinishedAt != nil {
				duration = run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond).String()
			}
			status := run.Status
			switch status {
			case cx.RunStatusSuccess:
				status = green.Sprint(status)
			case cx.RunStatusError:
				status = red.Sprint(status)
			}
			detail := run.OutputPath
			if run.Error != "" {
				detail = run.Error
			}
			fmt.Printf("#%d  %-14s  %-7s  %5d  %-8s  %s\n",
				run.ID,
				humanize.Time(run.StartedAt),
				status,
				run.FilesCount,
				duration,
				detail,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("root", "", "Export this tree instead of a stored project")
	exportCmd.Flags().String("export-path", ".", "Destination for --root exports")
	exportCmd.Flags().String("file-name", "codebase.md", "Export file base name for --root exports")
	exportCmd.Flags().StringSlice("ignore-folder", cx.DefaultIgnoredFolders, "Folder to skip for --root exports (repeatable)")
	exportCmd.Flags().StringSlice("ignore-file", cx.DefaultIgnoredFiles, "File name or path fragment to skip for --root exports (repeatable)")
	exportCmd.Flags().StringSlice("ignore-type", cx.DefaultIgnoredFileTypes, "Extension to skip for --root exports (repeatable)")

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
}
