package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/deps"
	"github.com/matzehuels/nativepkg/pkg/manifest"
)

// restoreCommand resolves the manifest, places binaries and syncs the
// derived files. A second run with an unchanged manifest does nothing.
func (c *CLI) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "restore",
		Aliases: []string{"install"},
		Short:   "Resolve dependencies and place their binaries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd, nil, false)
		},
	}
}

// updateCommand re-resolves the given dependencies (all when none are
// given) to the newest versions their ranges allow.
func (c *CLI) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update [id...]",
		Short: "Update locked dependencies to the newest matching versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd, args, true)
		},
	}
}

func (c *CLI) runResolve(cmd *cobra.Command, ids []string, update bool) error {
	ctx := cmd.Context()
	p, err := c.project()
	if err != nil {
		return err
	}
	own, err := p.LoadManifest()
	if err != nil {
		return err
	}

	client, closeCache, err := c.newRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeCache()
	if update {
		client = client.WithRefresh()
	}

	r := deps.NewResolver(client, c.newDispatcher(p, client), c.Logger)
	prog := newProgress(c.Logger)

	var spin *Spinner
	if isTerminal(cmd.ErrOrStderr()) {
		spin = newSpinner(ctx, cmd.ErrOrStderr(), fmt.Sprintf("Resolving %s", own.ID))
		spin.Start()
	}

	var res *deps.Result
	if update {
		res, err = r.Update(ctx, own, p.LockPath(), ids...)
	} else {
		res, err = r.Resolve(ctx, own, p.LockPath())
	}
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	prog.done(fmt.Sprintf("Resolved %d dependencies", len(res.Lock.Dependencies)))
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res *deps.Result) {
	out := cmd.OutOrStdout()
	if !res.LockChanged && len(res.Fetched) == 0 {
		printSuccess(out, "Dependencies up to date")
		return
	}

	fetched := make(map[string]bool, len(res.Fetched))
	for _, id := range res.Fetched {
		fetched[id] = true
	}
	printSuccess(out, "Locked %d dependencies", len(res.Lock.Dependencies))
	for _, rd := range res.Lock.Dependencies {
		line := pkgRef(rd.ID, rd.Version)
		if fetched[rd.ID] {
			line += " " + StyleDim.Render("(new)")
		}
		if headersOnly(rd) {
			line += " " + StyleDim.Render("headers only")
		}
		fmt.Fprintln(out, "  "+line)
	}
	for _, id := range res.Removed {
		printDetail(out, "removed %s", id)
	}
	printFile(out, manifest.LockFileName)
}

func headersOnly(rd manifest.ResolvedDependency) bool {
	h, _ := rd.Manifest.HeadersOnly()
	return h
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
