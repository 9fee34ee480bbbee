package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seniorcare/opscentre/internal/schema"
	"github.com/seniorcare/opscentre/internal/ui"
)

func newDocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doc",
		GroupID: "data",
		Short:   "Manage the document library",
	}
	cmd.AddCommand(
		newDocAddCmd(a),
		newDocListCmd(a),
		newDocUpdateCmd(a),
		newDocDeleteCmd(a),
	)
	return cmd
}

func docFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("title", "t", "", "document title")
	f.StringP("category", "c", "", "category: guideline, directory, form, policy")
	f.StringP("url", "u", "", "link to the document")
	f.String("description", "", "short description")
}

func applyDocFlags(cmd *cobra.Command, d *schema.Document) error {
	f := cmd.Flags()
	if f.Changed("title") {
		v, _ := f.GetString("title")
		d.Title = strings.TrimSpace(v)
	}
	if f.Changed("category") {
		v, _ := f.GetString("category")
		c, err := schema.ParseDocCategory(v)
		if err != nil {
			return err
		}
		d.Category = c
	}
	if f.Changed("url") {
		v, _ := f.GetString("url")
		d.URL = strings.TrimSpace(v)
	}
	if f.Changed("description") {
		d.Description, _ = f.GetString("description")
	}
	return nil
}

func newDocAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add [title]",
		Short:   "Add a document",
		Example: `  opsctl doc add "Fire safety guideline" -c guideline -u https://example.org/fire.pdf`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := schema.Document{Category: schema.DocGuideline}
			if err := applyDocFlags(cmd, &d); err != nil {
				return err
			}
			if len(args) == 1 && d.Title == "" {
				d.Title = strings.TrimSpace(args[0])
			}
			if d.Title == "" {
				return fmt.Errorf("a title is required")
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			created, err := st.AddDoc(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added document %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(created.ID)), created.Title)
			return nil
		},
	}
	docFlags(cmd)
	return cmd
}

func newDocListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			var category schema.DocCategory
			if v, _ := cmd.Flags().GetString("category"); v != "" {
				c, err := schema.ParseDocCategory(v)
				if err != nil {
					return err
				}
				category = c
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			docs, err := st.Docs(cmd.Context())
			if err != nil {
				return err
			}

			out := []schema.Document{}
			for _, d := range docs {
				if category == "" || d.Category == category {
					out = append(out, d)
				}
			}

			if jsonOut(cmd) {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			if len(out) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No documents"))
				return nil
			}
			rows := make([][]string, 0, len(out))
			for _, d := range out {
				rows = append(rows, []string{shortID(d.ID), string(d.Category), d.Title, d.URL, d.UpdatedAt})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"ID", "CATEGORY", "TITLE", "URL", "UPDATED"}, rows))
			return nil
		},
	}
	cmd.Flags().StringP("category", "c", "", "only documents in this category")
	addJSONFlag(cmd)
	return cmd
}

func newDocUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !anyChanged(cmd, "title", "category", "url", "description") {
				return fmt.Errorf("nothing to update: pass at least one field flag")
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			d, err := st.UpdateDoc(cmd.Context(), args[0], func(d *schema.Document) error {
				return applyDocFlags(cmd, d)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated document %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(d.ID)), d.Title)
			return nil
		},
	}
	docFlags(cmd)
	return cmd
}

func newDocDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.DeleteDoc(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted document %s\n", ui.RenderPass("✓"), args[0])
			return nil
		},
	}
}
