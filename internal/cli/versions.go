package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/registry"
)

// versionsCommand lists the published versions of a package.
func (c *CLI) versionsCommand() *cobra.Command {
	var limit int
	var refresh bool

	cmd := &cobra.Command{
		Use:   "versions <id>",
		Short: "List published versions of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, closeCache, err := c.newRegistry(ctx)
			if err != nil {
				return err
			}
			defer closeCache()
			if refresh {
				client = client.WithRefresh()
			}

			versions, err := client.ListVersions(ctx, args[0])
			if err != nil {
				return err
			}
			total := len(versions)
			if limit > 0 && limit < total {
				versions = versions[:limit]
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, versionsTable(versions, c.lockedVersion(args[0])))
			if len(versions) < total {
				printDetail(out, "showing %d of %d versions", len(versions), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n versions")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cached version listing")
	return cmd
}

// lockedVersion returns the version of id locked by the current project,
// or "" outside a project.
func (c *CLI) lockedVersion(id string) string {
	p, err := c.project()
	if err != nil {
		return ""
	}
	lock, err := p.LoadLock()
	if err != nil {
		return ""
	}
	if rd, ok := lock.Get(id); ok {
		return rd.Version
	}
	return ""
}

func versionsTable(versions []registry.Summary, locked string) string {
	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		mark := ""
		if v.Version == locked {
			mark = iconSuccess
		}
		rows = append(rows, []string{v.ID, v.Version, mark})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Version", "Locked").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < len(rows) && rows[row][2] != "" {
				return base.Foreground(colorGreen)
			}
			return base
		}).
		Render()
}
