package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-pianoroll/project"
)

func init() {
	rootCmd.AddCommand(projectsCmd)
}

var projectsCmd = &cobra.Command{
	Use:   "projects [name]",
	Short: "List saved projects, or the saves in one project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := project.Open()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			saves, err := store.ListSaves(args[0])
			if err != nil {
				return err
			}
			for _, s := range saves {
				fmt.Fprintf(out, "%s  %-24s %s\n", s.Timestamp.Format("2006-01-02 15:04:05"), s.Name, s.Filename)
			}
			return nil
		}

		projects, err := store.ListProjects()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Fprintln(out, "no projects in", store.Root)
		}
		for _, p := range projects {
			saves, err := store.ListSaves(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-24s %d saves\n", p, len(saves))
		}
		return nil
	},
}
