package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seniorcare/opscentre/internal/schema"
	"github.com/seniorcare/opscentre/internal/ui"
)

func newNoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "note",
		GroupID: "data",
		Short:   "Manage notes",
	}
	cmd.AddCommand(
		newNoteAddCmd(a),
		newNoteListCmd(a),
		newNoteUpdateCmd(a),
		newNoteDeleteCmd(a),
	)
	return cmd
}

func noteFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("title", "t", "", "note title")
	f.StringP("category", "c", "", "free-form category")
	f.StringP("content", "m", "", "note body")
}

func applyNoteFlags(cmd *cobra.Command, n *schema.Note) {
	f := cmd.Flags()
	if f.Changed("title") {
		v, _ := f.GetString("title")
		n.Title = strings.TrimSpace(v)
	}
	if f.Changed("category") {
		v, _ := f.GetString("category")
		n.Category = strings.TrimSpace(v)
	}
	if f.Changed("content") {
		n.Content, _ = f.GetString("content")
	}
}

func newNoteAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a note",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n schema.Note
			applyNoteFlags(cmd, &n)
			if len(args) == 1 && n.Title == "" {
				n.Title = strings.TrimSpace(args[0])
			}
			if n.Title == "" {
				return fmt.Errorf("a title is required")
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			created, err := st.AddNote(cmd.Context(), n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created note %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(created.ID)), created.Title)
			return nil
		},
	}
	noteFlags(cmd)
	return cmd
}

func newNoteListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			notes, err := st.Notes(cmd.Context())
			if err != nil {
				return err
			}

			out := []schema.Note{}
			for _, n := range notes {
				if category == "" || strings.EqualFold(n.Category, category) {
					out = append(out, n)
				}
			}

			if jsonOut(cmd) {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			if len(out) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No notes"))
				return nil
			}
			rows := make([][]string, 0, len(out))
			for _, n := range out {
				rows = append(rows, []string{shortID(n.ID), n.Category, n.Title, firstLine(n.Content, 40)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"ID", "CATEGORY", "TITLE", "CONTENT"}, rows))
			return nil
		},
	}
	cmd.Flags().StringP("category", "c", "", "only notes in this category")
	addJSONFlag(cmd)
	return cmd
}

func newNoteUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !anyChanged(cmd, "title", "category", "content") {
				return fmt.Errorf("nothing to update: pass --title, --category or --content")
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			n, err := st.UpdateNote(cmd.Context(), args[0], func(n *schema.Note) error {
				applyNoteFlags(cmd, n)
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated note %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(n.ID)), n.Title)
			return nil
		},
	}
	noteFlags(cmd)
	return cmd
}

func newNoteDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.DeleteNote(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted note %s\n", ui.RenderPass("✓"), args[0])
			return nil
		},
	}
}

// firstLine returns the first line of s, cut to max runes.
func firstLine(s string, max int) string {
	s, _, _ = strings.Cut(s, "\n")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return s
}
