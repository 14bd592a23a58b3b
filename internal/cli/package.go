package cli

import (
	"github.com/spf13/cobra"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/events"
	"github.com/matzehuels/nativepkg/pkg/fsutil"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/project"
)

// createOpts holds the flags for the create command.
type createOpts struct {
	name            string
	sharedDir       string
	dependenciesDir string
}

// createCommand creates a new package manifest in the project directory.
func (c *CLI) createCommand() *cobra.Command {
	var opts createOpts

	cmd := &cobra.Command{
		Use:   "create <id> <version>",
		Short: "Create a package manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCreate(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.sharedDir, "shared-dir", project.DefaultSharedDir, "directory with the package's public headers")
	cmd.Flags().StringVar(&opts.dependenciesDir, "dependencies-dir", project.DefaultDependenciesDir, "directory dependencies are placed in")

	return cmd
}

func (c *CLI) runCreate(cmd *cobra.Command, id, ver string, opts createOpts) error {
	p, err := c.projectRoot()
	if err != nil {
		return err
	}
	if fsutil.Exists(p.ManifestPath()) {
		return nperrors.New(nperrors.ErrCodeInvalidInput, "%s already exists", p.ManifestPath())
	}

	m := &manifest.Manifest{
		ID:              id,
		Version:         ver,
		Name:            opts.name,
		SharedDir:       opts.sharedDir,
		DependenciesDir: opts.dependenciesDir,
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := m.Save(p.ManifestPath()); err != nil {
		return err
	}
	if err := c.newDispatcher(p, nil).Dispatch(cmd.Context(), events.PackageCreated{Manifest: m}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Created %s", pkgRef(m.ID, m.Version))
	printFile(out, p.ManifestPath())
	printNextStep(out, "Add a dependency", appName+" dependency add <id>")
	return nil
}

// projectRoot returns the project for commands that may run before a
// manifest exists.
func (c *CLI) projectRoot() (*project.Project, error) {
	if c.dir != "" {
		return project.New(c.dir), nil
	}
	return project.New("."), nil
}

// =============================================================================
// package edit
// =============================================================================

func (c *CLI) packageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "package",
		Short: "Inspect and edit the package manifest",
	}
	cmd.AddCommand(c.packageEditCommand())
	cmd.AddCommand(c.packageShowCommand())
	return cmd
}

func (c *CLI) packageEditCommand() *cobra.Command {
	var id, ver, name string

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Change the package id, version or name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if !f.Changed("id") && !f.Changed("version") && !f.Changed("name") {
				return nperrors.New(nperrors.ErrCodeInvalidInput, "nothing to edit: pass --id, --version or --name")
			}

			p, err := c.project()
			if err != nil {
				return err
			}
			m, err := p.LoadManifest()
			if err != nil {
				return err
			}

			var evs []events.Event
			if f.Changed("id") && id != m.ID {
				evs = append(evs, events.IdentityChanged{Old: m.ID, New: id})
				m.ID = id
			}
			if f.Changed("version") && ver != m.Version {
				evs = append(evs, events.VersionChanged{Old: m.Version, New: ver})
				m.Version = ver
			}
			if f.Changed("name") && name != m.Name {
				evs = append(evs, events.NameChanged{Old: m.Name, New: name})
				m.Name = name
			}

			out := cmd.OutOrStdout()
			if len(evs) == 0 {
				printInfo(out, "Manifest already up to date")
				return nil
			}
			if err := m.Validate(); err != nil {
				return err
			}
			if err := m.Save(p.ManifestPath()); err != nil {
				return err
			}
			if err := c.newDispatcher(p, nil).Dispatch(cmd.Context(), evs...); err != nil {
				return err
			}
			for _, ev := range evs {
				printSuccess(out, "%s", describe(ev))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "new package id")
	cmd.Flags().StringVar(&ver, "version", "", "new package version")
	cmd.Flags().StringVar(&name, "name", "", "new display name")

	return cmd
}

func (c *CLI) packageShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the package manifest summary",
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
			printKeyValue(out, "id", m.ID)
			printKeyValue(out, "version", m.Version)
			if m.Name != "" {
				printKeyValue(out, "name", m.Name)
			}
			printKeyValue(out, "deps dir", project.DependenciesDir(m))
			for _, d := range m.Dependencies {
				printDetail(out, "%s %s", d.ID, d.Range())
			}
			return nil
		},
	}
}

func describe(ev events.Event) string {
	switch e := ev.(type) {
	case events.IdentityChanged:
		return "Renamed " + e.Old + " " + iconArrow + " " + StyleHighlight.Render(e.New)
	case events.VersionChanged:
		return "Version " + e.Old + " " + iconArrow + " " + StyleValue.Render(e.New)
	case events.NameChanged:
		return "Name " + iconArrow + " " + StyleValue.Render(e.New)
	}
	return string(ev.Kind())
}
