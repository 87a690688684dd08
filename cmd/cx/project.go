package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"cx-go/internal/cx"
)

func printProject(p *cx.Project) {
	fmt.Printf("ID:        %s\n", p.ID)
	fmt.Printf("Name:      %s\n", p.Name)
	fmt.Printf("Codebase:  %s\n", p.CodebasePath)
	fmt.Printf("Export to: %s\n", p.ExportPath)
	fmt.Printf("File name: %s\n", p.ExportFileName)
	fmt.Printf("Created:   %s\n", humanize.Time(p.CreatedAt))
	fmt.Printf("Updated:   %s\n", humanize.Time(p.UpdatedAt))
}

func printRules(r *cx.CodebaseRules) {
	id := r.ID
	if id == "" {
		id = "(defaults, not saved)"
	}
	root := r.RootFolder
	if root == "" {
		root = "(project codebase path)"
	}
	fmt.Printf("ID:                 %s\n", id)
	fmt.Printf("Root folder:        %s\n", root)
	fmt.Printf("Ignored folders:    %s\n", strings.Join(r.IgnoredFolders, ", "))
	fmt.Printf("Ignored files:      %s\n", strings.Join(r.IgnoredFiles, ", "))
	fmt.Printf("Ignored file types: %s\n", strings.Join(r.IgnoredFileTypes, ", "))
}

// project command
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codebase, _ := cmd.Flags().GetString("codebase")
		exportPath, _ := cmd.Flags().GetString("export-path")
		fileName, _ := cmd.Flags().GetString("file-name")

		a, _, err := newApp(cmd.Context(), "CreateProject")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.CreateProject(cmd.Context(), cx.CreateProjectRequest{
			Name:           args[0],
			CodebasePath:   codebase,
			ExportPath:     exportPath,
			ExportFileName: fileName,
		})
		if err != nil {
			return fmt.Errorf("creating project: %w", err)
		}

		printProject(p)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd.Context(), "ListProjects")
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.ListProjects(cmd.Context())
		if err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Println("No projects registered.")
			return nil
		}

		for _, p := range projects {
			fmt.Printf("%s  %-20s  %s\n", p.ID, p.Name, p.CodebasePath)
		}
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a project and its rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd.Context(), "GetProject")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.GetProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		rules, err := a.GetRules(cmd.Context(), p.ID)
		if err != nil {
			return err
		}

		printProject(p)
		fmt.Println()
		printRules(rules)
		return nil
	},
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update project fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var req cx.UpdateProjectRequest
		flags := cmd.Flags()
		for name, dst := range map[string]**string{
			"name":        &req.Name,
			"codebase":    &req.CodebasePath,
			"export-path": &req.ExportPath,
			"file-name":   &req.ExportFileName,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*dst = &v
			}
		}

		a, _, err := newApp(cmd.Context(), "UpdateProject")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.UpdateProject(cmd.Context(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating project: %w", err)
		}

		printProject(p)
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a project and its rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd.Context(), "DeleteProject")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.DeleteProject(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Deleted project %s (%s)\n", p.Name, p.ID)
		return nil
	},
}

// rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage project ignore rules",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show PROJECT_ID",
	Short: "Show saved or default rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd.Context(), "GetRules")
		if err != nil {
			return err
		}
		defer a.Close()

		rules, err := a.GetRules(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printRules(rules)
		return nil
	},
}

var rulesSetCmd = &cobra.Command{
	Use:   "set PROJECT_ID",
	Short: "Replace the rules of a project",
	Long: `Replace the rules of a project, either from flags or from a YAML file:

  rootFolder: /src/web/app
  ignoredFolders: [node_modules, .git]
  ignoredFiles: [.env]
  ignoredFileTypes: [log, tmp]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in cx.RulesInput
		if path, _ := cmd.Flags().GetString("from-file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading rules file: %w", err)
			}
			if err := yaml.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("parsing rules file %s: %w", path, err)
			}
		} else {
			in.RootFolder, _ = cmd.Flags().GetString("root")
			in.IgnoredFolders, _ = cmd.Flags().GetStringSlice("ignore-folder")
			in.IgnoredFiles, _ = cmd.Flags().GetStringSlice("ignore-file")
			in.IgnoredFileTypes, _ = cmd.Flags().GetStringSlice("ignore-type")
		}

		a, _, err := newApp(cmd.Context(), "SaveRules")
		if err != nil {
			return err
		}
		defer a.Close()

		rules, err := a.SaveRules(cmd.Context(), args[0], in)
		if err != nil {
			return fmt.Errorf("saving rules: %w", err)
		}

		printRules(rules)
		return nil
	},
}

func init() {
	projectCmd.AddCommand(projectAddCmd)
	projectAddCmd.Flags().String("codebase", ".", "Source tree to export")
	projectAddCmd.Flags().String("export-path", "", "Destination directory or s3://bucket/prefix")
	projectAddCmd.Flags().String("file-name", "codebase.md", "Base name of the export file")
	projectAddCmd.MarkFlagRequired("export-path")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)

	projectCmd.AddCommand(projectUpdateCmd)
	projectUpdateCmd.Flags().String("name", "", "New name")
	projectUpdateCmd.Flags().String("codebase", "", "New source tree")
	projectUpdateCmd.Flags().String("export-path", "", "New destination")
	projectUpdateCmd.Flags().String("file-name", "", "New export file base name")

	projectCmd.AddCommand(projectRmCmd)

	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesSetCmd)
	rulesSetCmd.Flags().String("from-file", "", "Read rules from a YAML file")
	rulesSetCmd.Flags().String("root", "", "Root folder overriding the project codebase path")
	rulesSetCmd.Flags().StringSlice("ignore-folder", nil, "Folder name to skip (repeatable)")
	rulesSetCmd.Flags().StringSlice("ignore-file", nil, "File name or path fragment to skip (repeatable)")
	rulesSetCmd.Flags().StringSlice("ignore-type", nil, "File extension to skip (repeatable)")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(rulesCmd)
}
