// Package cli provides the command-line interface for issue-crew.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runoshun/issue-crew/internal/app"
)

// Command group IDs.
const (
	groupServer = "server"
	groupIssue  = "issue"
	groupSetup  = "setup"
)

// skipOpen marks commands that only need the config files, not the store.
const skipOpen = "issue-crew/skip-open"

// NewRootCommand creates the root command for issue-crew.
// The container is opened lazily, after flags are parsed.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "issue-crew",
		Short: "Issue tracker with pluggable storage",
		Long: `issue-crew tracks issues (title, description, priority, status) in a single
persisted collection. Run 'issue-crew serve' for the HTTP API, or use the
issue commands to work with the same store from the shell.

The store is chosen in issue-crew.toml ([store] driver): json, yaml, git,
sqlite, postgres, s3 or memory.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if needsNoStore(cmd) {
				return nil
			}
			if err := c.Open(cmd.Context(), cmd.ErrOrStderr()); err != nil {
				return err
			}
			for _, w := range c.Config.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.ConfigPath, "config", "c", "", "Config file (default ./issue-crew.toml)")

	root.AddGroup(
		&cobra.Group{ID: groupServer, Title: "Server Commands:"},
		&cobra.Group{ID: groupIssue, Title: "Issue Management:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)

	serveCmd := newServeCommand(c)
	serveCmd.GroupID = groupServer

	listCmd := newListCommand(c)
	listCmd.GroupID = groupIssue

	showCmd := newShowCommand(c)
	showCmd.GroupID = groupIssue

	newCmd := newNewCommand(c)
	newCmd.GroupID = groupIssue

	editCmd := newEditCommand(c)
	editCmd.GroupID = groupIssue

	deleteCmd := newDeleteCommand(c)
	deleteCmd.GroupID = groupIssue

	configCmd := newConfigCommand(c)
	configCmd.GroupID = groupSetup

	root.AddCommand(serveCmd, listCmd, showCmd, newCmd, editCmd, deleteCmd, configCmd)
	return root
}

// needsNoStore reports whether cmd or one of its parents is marked skipOpen.
// Cobra's built-in help and completion commands never need the store either.
func needsNoStore(cmd *cobra.Command) bool {
	for p := cmd; p != nil; p = p.Parent() {
		if p.Annotations[skipOpen] == "true" {
			return true
		}
		switch p.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}
