package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/runoshun/issue-crew/internal/app"
	"github.com/runoshun/issue-crew/internal/domain"
)

// newListCommand creates the list command.
func newListCommand(c *app.Container) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List issues",
		Long: `Display all issues in insertion order.

Examples:
  # Table view
  issue-crew list

  # Same payload as GET /api/v1/issues
  issue-crew list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues, err := c.Store.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), issues)
			}
			printIssueTable(cmd.OutOrStdout(), issues)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print issues as JSON")

	return cmd
}

// newShowCommand creates the show command.
func newShowCommand(c *app.Container) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issue, err := c.Store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), issue)
			}
			printIssueDetails(cmd.OutOrStdout(), issue)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the issue as JSON")

	return cmd
}

// newNewCommand creates the new command for creating issues.
func newNewCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Title       string
		Description string
		Priority    string
	}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new issue",
		Long: `Create a new issue. It starts with status 'open'.

Examples:
  issue-crew new --title "Login broken"

  issue-crew new --title "Login broken" --body "500 on submit" --priority high`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			priority, err := domain.ParsePriority(opts.Priority)
			if err != nil {
				return err
			}

			issue, err := c.Store.Create(cmd.Context(), domain.NewIssue{
				Title:       opts.Title,
				Description: opts.Description,
				Priority:    priority,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created issue %s\n", issue.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "Issue title (required)")
	cmd.Flags().StringVar(&opts.Description, "body", "", "Issue description")
	cmd.Flags().StringVar(&opts.Priority, "priority", string(domain.DefaultPriority), "Priority: low, medium or high")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

// newEditCommand creates the edit command.
// Only flags given on the command line are applied.
func newEditCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Title       string
		Description string
		Priority    string
		Status      string
	}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an issue",
		Long: `Update some fields of an issue. Fields whose flag is not given keep
their current value. If any value is invalid nothing is changed.

Examples:
  # Start working on an issue
  issue-crew edit 3f2c... --status in_progress

  # Clear the description
  issue-crew edit 3f2c... --body ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch domain.IssuePatch
			if flags.Changed("title") {
				patch.Title = &opts.Title
			}
			if flags.Changed("body") {
				patch.Description = &opts.Description
			}
			if flags.Changed("priority") {
				p := domain.Priority(opts.Priority)
				patch.Priority = &p
			}
			if flags.Changed("status") {
				s := domain.Status(opts.Status)
				patch.Status = &s
			}
			if patch.IsEmpty() {
				return errors.New("no changes: specify at least one of --title, --body, --priority, --status")
			}

			issue, err := c.Store.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated issue %s\n", issue.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "New title")
	cmd.Flags().StringVar(&opts.Description, "body", "", "New description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "New priority: low, medium or high")
	cmd.Flags().StringVar(&opts.Status, "status", "", "New status: open, in_progress or closed")

	return cmd
}

// newDeleteCommand creates the delete command.
func newDeleteCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an issue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.Store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted issue %s\n", args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
