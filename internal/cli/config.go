package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/runoshun/issue-crew/internal/app"
	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/config"
)

// newConfigCommand groups the config file subcommands. It never opens the store.
func newConfigCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage configuration",
		Long:        `Manage issue-crew configuration files and settings.`,
		Annotations: map[string]string{skipOpen: "true"},
	}

	cmd.AddCommand(newConfigShowCommand(c))
	cmd.AddCommand(newConfigTemplateCommand())
	cmd.AddCommand(newConfigInitCommand(c))

	return cmd
}

// newConfigShowCommand prints config sources and the merged result.
func newConfigShowCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		Long: `Print the configuration issue-crew would run with.

Shows which config files were loaded and the final merged configuration,
including environment overrides (ISSUE_CREW_*).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.ConfigLoader().Load()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			manager := c.ConfigManager()

			_, _ = fmt.Fprintln(w, "[Loaded from]")
			printConfigSource(w, manager.GlobalConfigInfo())
			printConfigSource(w, manager.LocalConfigInfo())
			_, _ = fmt.Fprintln(w)

			for _, warning := range cfg.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
			}
			if err := cfg.Validate(); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", err)
			}

			out, err := config.Render(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(w, "[Effective Config]")
			_, _ = fmt.Fprint(w, out)
			return nil
		},
	}
}

func printConfigSource(w io.Writer, info config.ConfigInfo) {
	if info.Path == "" {
		return
	}
	if info.Exists {
		_, _ = fmt.Fprintf(w, "- %s\n", info.Path)
	} else {
		_, _ = fmt.Fprintf(w, "- %s (not found)\n", info.Path)
	}
}

func newConfigTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Print the default config template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), domain.ConfigTemplate())
			return nil
		},
	}
}

// newConfigInitCommand writes the template to the local or global config path.
func newConfigInitCommand(c *app.Container) *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file from the template",
		Long: `Write the default config template.

Without flags the local file is created (./issue-crew.toml, or the path
given with --config). With --global the user config file is created
instead. Existing files are never overwritten.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := c.ConfigManager()

			var (
				path string
				err  error
			)
			if global {
				path, err = manager.InitGlobalConfig()
			} else {
				path, err = manager.InitLocalConfig()
			}
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&global, "global", "g", false, "Create the global config file")

	return cmd
}
