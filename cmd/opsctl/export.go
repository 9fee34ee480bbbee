package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seniorcare/opscentre/internal/store"
	"github.com/seniorcare/opscentre/internal/ui"
)

// exportFormat picks the format from --format, then the file extension.
func exportFormat(cmd *cobra.Command, path string) (store.Format, error) {
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		return store.ParseFormat(v)
	}
	if path == "" || path == "-" {
		return store.FormatJSON, nil
	}
	return store.FormatFromPath(path)
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export [file]",
		GroupID: "data",
		Short:   "Back up all local data to a file or stdout",
		Long: `Write every task, note and document plus the lastUpdated marker.

The format follows the file extension (.json, .yaml, .yml, .toml) unless
--format is given. JSON output is the same document the Gist holds.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			format, err := exportFormat(cmd, path)
			if err != nil {
				return err
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			if path == "" || path == "-" {
				return st.Export(cmd.Context(), cmd.OutOrStdout(), format)
			}

			var buf bytes.Buffer
			if err := st.Export(cmd.Context(), &buf, format); err != nil {
				return err
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %s to %s\n",
				ui.RenderPass("✓"), ui.Bytes(int64(buf.Len())), path)
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "", "json, yaml or toml")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import <file>",
		GroupID: "data",
		Short:   "Replace local data from a backup file",
		Long: `Replace the local collections with the ones in a backup.

Collections missing from the file are left untouched. Every item is
validated before anything is written. The import counts as a local edit,
so the next push uploads it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := exportFormat(cmd, path)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}
				defer f.Close()
				r = f
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := st.Import(cmd.Context(), r, format)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s Imported %s\n", ui.RenderPass("✓"), path)
			for _, c := range []struct {
				name  string
				count int
				ok    bool
			}{
				{"tasks", len(snap.Tasks), snap.Tasks != nil},
				{"notes", len(snap.Notes), snap.Notes != nil},
				{"docs", len(snap.Docs), snap.Docs != nil},
			} {
				if c.ok {
					fmt.Fprintf(w, "   %s: %s\n", c.name, ui.Count(c.count))
				} else {
					fmt.Fprintf(w, "   %s: %s\n", c.name, ui.RenderMuted("unchanged"))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "", "json, yaml or toml (default from the file extension)")
	return cmd
}
