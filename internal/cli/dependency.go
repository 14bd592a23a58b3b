package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/deps"
	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/version"
)

func (c *CLI) dependencyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dependency",
		Aliases: []string{"dep"},
		Short:   "Add or remove declared dependencies",
	}
	cmd.AddCommand(c.dependencyAddCommand())
	cmd.AddCommand(c.dependencyRemoveCommand())
	return cmd
}

// dependencyAddOpts holds the flags for "dependency add".
type dependencyAddOpts struct {
	release bool // link the release binary instead of the debug one
	pick    bool // choose the version interactively
}

// dependencyAddCommand declares a dependency in the manifest. Nothing is
// resolved or placed until the next restore.
func (c *CLI) dependencyAddCommand() *cobra.Command {
	var opts dependencyAddOpts

	cmd := &cobra.Command{
		Use:   "add <id> [range]",
		Short: "Declare a dependency",
		Long: `Declare a dependency in nativepkg.toml.

Without a range the newest published version is looked up and pinned with a
caret range (^1.2.3). Run "nativepkg restore" afterwards to fetch it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng := ""
			if len(args) == 2 {
				rng = args[1]
			}
			return c.runDependencyAdd(cmd, args[0], rng, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.release, "release", false, "link the release binary (soLink) instead of the debug one")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "pick the version interactively")

	return cmd
}

func (c *CLI) runDependencyAdd(cmd *cobra.Command, id, rng string, opts dependencyAddOpts) error {
	if opts.pick && rng != "" {
		return nperrors.New(nperrors.ErrCodeInvalidInput, "--pick and an explicit range are mutually exclusive")
	}
	if rng != "" {
		if _, err := version.ParseRange(rng); err != nil {
			return nperrors.Wrap(nperrors.ErrCodeInvalidInput, err, "dependency %s", id)
		}
	}

	p, err := c.project()
	if err != nil {
		return err
	}
	m, err := p.LoadManifest()
	if err != nil {
		return err
	}
	if id == m.ID {
		return nperrors.New(nperrors.ErrCodeInvalidInput, "%s cannot depend on itself", id)
	}

	ctx := cmd.Context()
	client, closeCache, err := c.newRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	switch {
	case opts.pick:
		versions, err := client.ListVersions(ctx, id)
		if err != nil {
			return err
		}
		locked := ""
		if lock, err := p.LoadLock(); err == nil {
			if rd, ok := lock.Get(id); ok {
				locked = rd.Version
			}
		}
		picked, err := pickVersion(cmd.InOrStdin(), cmd.ErrOrStderr(), id, versions, locked)
		if err != nil {
			return err
		}
		if picked == nil {
			printInfo(cmd.OutOrStdout(), "No version selected")
			return nil
		}
		rng = "^" + picked.Version
	default:
		latest, err := client.Latest(ctx, id, rng)
		if err != nil {
			return err
		}
		if rng == "" {
			rng = "^" + latest.Version
		}
	}

	spec := manifest.DependencySpec{ID: id, VersionRange: rng}
	if existing, _ := m.Dependency(id); existing != nil {
		spec.ExtensionData = existing.ExtensionData.Clone()
	}
	if opts.release {
		if spec.ExtensionData == nil {
			spec.ExtensionData = manifest.ExtensionData{}
		}
		if err := spec.ExtensionData.Set(manifest.KeyUseRelease, true); err != nil {
			return err
		}
	}

	replaced := m.SetDependency(spec)
	if err := m.Validate(); err != nil {
		return err
	}
	if err := m.Save(p.ManifestPath()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verb := "Added"
	if replaced {
		verb = "Updated"
	}
	printSuccess(out, "%s %s %s", verb, StyleHighlight.Render(id), StyleValue.Render(rng))
	printNextStep(out, "Fetch it", appName+" restore")
	return nil
}

// dependencyRemoveCommand drops a dependency from the manifest and removes
// it, and anything only it needed, from the lock file and derived files.
func (c *CLI) dependencyRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a dependency",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			p, err := c.project()
			if err != nil {
				return err
			}
			m, err := p.LoadManifest()
			if err != nil {
				return err
			}
			if !m.RemoveDependency(id) {
				return nperrors.New(nperrors.ErrCodeNotFound, "%s is not a declared dependency", id)
			}
			if err := m.Save(p.ManifestPath()); err != nil {
				return err
			}

			removed, err := deps.NewRemover(c.newDispatcher(p, nil), c.Logger).Remove(cmd.Context(), m, p.LockPath(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSuccess(out, "Removed %s", StyleHighlight.Render(id))
			for _, gone := range removed {
				if gone != id {
					printDetail(out, "no longer needed: %s", gone)
				}
			}
			return nil
		},
	}
}
