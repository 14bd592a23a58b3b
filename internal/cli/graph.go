package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/depgraph"
	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/fsutil"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// graphOpts holds the flags for the graph command.
type graphOpts struct {
	output   string
	format   string
	versions bool
}

// graphCommand renders the locked dependency graph.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatDOT, versions: true}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the locked dependency graph (DOT or SVG)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatDOT && opts.format != formatSVG {
				return nperrors.New(nperrors.ErrCodeInvalidInput, "unknown format %q (want %s or %s)", opts.format, formatDOT, formatSVG)
			}

			p, err := c.project()
			if err != nil {
				return err
			}
			own, err := p.LoadManifest()
			if err != nil {
				return err
			}
			lock, err := p.LoadLock()
			if err != nil {
				return err
			}
			if len(lock.Dependencies) == 0 && len(own.Dependencies) > 0 {
				printWarning(cmd.ErrOrStderr(), "nothing is locked yet; run %s restore first", appName)
			}

			data := []byte(depgraph.ToDOT(own, lock, depgraph.Options{Versions: opts.versions}))
			if opts.format == formatSVG {
				if data, err = depgraph.RenderSVG(cmd.Context(), string(data)); err != nil {
					return fmt.Errorf("render svg: %w", err)
				}
			}

			if opts.output == "" || opts.output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := fsutil.WriteFileAtomic(opts.output, data, 0o644); err != nil {
				return err
			}
			printSuccess(cmd.ErrOrStderr(), "Wrote %s graph", opts.format)
			printFile(cmd.ErrOrStderr(), opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg")
	cmd.Flags().BoolVar(&opts.versions, "versions", opts.versions, "label nodes with their locked versions")
	return cmd
}

