package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/updater"
	"github.com/spf13/cobra"
)

// DefaultRepository is where station releases are published.
const DefaultRepository = "smazurov/photostation"

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		checkOnly  bool
		rollback   bool
		prerelease bool
		repository string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install the latest station release",
		Long: `Replaces this binary with the newest GitHub release. The previous binary is ` +
			`kept and can be put back with --rollback. Restart the station afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			u, err := updater.New(updater.Options{
				Repository: repository,
				Prerelease: prerelease,
				// The operator restarts the service; this process just exits.
				Restart: func() {},
			})
			if err != nil {
				return err
			}
			if ok, reason := u.Enabled(); !ok {
				return fmt.Errorf("self-update disabled: %s", reason)
			}

			out := c.OutOrStdout()
			if rollback {
				if err := u.Rollback(c.Context()); err != nil {
					return err
				}
				status := u.Status()
				fmt.Fprintf(out, "Restored %s. Restart the station to use it.\n", status.BackupVersion)
				return nil
			}

			info, err := u.Check(c.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderUpdateInfo(info))
			if checkOnly || !info.UpdateAvailable {
				return nil
			}

			if _, err := u.Apply(c.Context()); err != nil {
				return err
			}
			fmt.Fprintf(out, "Installed %s. Restart the station to use it.\n", info.LatestVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the binary replaced by the last update")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().StringVar(&repository, "repository", DefaultRepository, "GitHub repository to update from")
	cmd.MarkFlagsMutuallyExclusive("check", "rollback")
	cmd.SetOut(os.Stdout)
	return cmd
}

func renderUpdateInfo(info updater.Info) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendRow(table.Row{"Running", info.CurrentVersion})
	tw.AppendRow(table.Row{"Latest", info.LatestVersion})
	available := "no"
	if info.UpdateAvailable {
		available = "yes"
	}
	tw.AppendRow(table.Row{"Update available", available})
	if info.ReleaseURL != "" {
		tw.AppendRow(table.Row{"Release", info.ReleaseURL})
	}
	return tw.Render()
}
