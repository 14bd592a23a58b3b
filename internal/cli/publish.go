package cli

import (
	"github.com/spf13/cobra"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
)

// publishCommand uploads the project manifest to the registry.
func (c *CLI) publishCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the package manifest to the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.project()
			if err != nil {
				return err
			}
			m, err := p.LoadManifest()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				data, err := m.Encode()
				if err != nil {
					return err
				}
				printInfo(out, "Would publish %s to %s", pkgRef(m.ID, m.Version), c.settings().RegistryURL)
				_, err = out.Write(data)
				return err
			}
			if c.settings().Token == "" {
				return nperrors.New(nperrors.ErrCodeInvalidInput, "publishing needs a token: pass --token or set NATIVEPKG_TOKEN")
			}

			ctx := cmd.Context()
			client, closeCache, err := c.newRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeCache()

			if err := client.Publish(ctx, m); err != nil {
				return err
			}
			printSuccess(out, "Published %s", pkgRef(m.ID, m.Version))
			printDetail(out, "%s", client.URL())
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the manifest instead of publishing it")
	return cmd
}
