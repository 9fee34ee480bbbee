package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seniorcare/opscentre/internal/dates"
	"github.com/seniorcare/opscentre/internal/schema"
	"github.com/seniorcare/opscentre/internal/ui"
)

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		GroupID: "data",
		Short:   "Manage the task board",
	}
	cmd.AddCommand(
		newTaskAddCmd(a),
		newTaskListCmd(a),
		newTaskShowCmd(a),
		newTaskUpdateCmd(a),
		newTaskDoneCmd(a),
		newTaskDeleteCmd(a),
		newTaskDueCmd(a),
	)
	return cmd
}

var taskFlagNames = []string{
	"title", "location", "assignee", "status", "priority",
	"category", "recurring", "due", "description", "attachment",
}

// taskFlags are shared by task add and task update.
func taskFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("title", "t", "", "task title")
	f.StringP("location", "l", "", "location: "+strings.Join(schema.Locations, ", "))
	f.StringSliceP("assignee", "a", nil, "assignee (repeatable)")
	f.StringP("status", "s", "", "status: pending, in-progress, completed, stuck")
	f.StringP("priority", "p", "", "priority: emergency, normal, low")
	f.StringP("category", "c", "", "category: maintenance, hr, admin, procurement, nursing, safety")
	f.StringP("recurring", "r", "", "recurrence: none, daily, weekly, monthly, quarterly, yearly")
	f.StringP("due", "d", "", `deadline: YYYY-MM-DD or a phrase like "next friday"`)
	f.String("description", "", "task description")
	f.String("attachment", "", "attachment URL")
}

// applyTaskFlags copies the flags the user set onto t.
func applyTaskFlags(a *app, cmd *cobra.Command, t *schema.Task) error {
	f := cmd.Flags()
	str := func(name string) (string, bool) {
		if !f.Changed(name) {
			return "", false
		}
		v, _ := f.GetString(name)
		return strings.TrimSpace(v), true
	}

	if v, ok := str("title"); ok {
		t.Title = v
	}
	if v, ok := str("location"); ok {
		if !schema.IsLocation(v) {
			return fmt.Errorf("unknown location %q (valid: %s)", v, strings.Join(schema.Locations, ", "))
		}
		t.Location = v
	}
	if f.Changed("assignee") {
		names, _ := f.GetStringSlice("assignee")
		t.Assignees = cleanNames(names)
	}
	if v, ok := str("status"); ok {
		st, err := schema.ParseStatus(v)
		if err != nil {
			return err
		}
		t.Status = st
	}
	if v, ok := str("priority"); ok {
		p, err := schema.ParsePriority(v)
		if err != nil {
			return err
		}
		t.Priority = p
	}
	if v, ok := str("category"); ok {
		c, err := schema.ParseCategory(v)
		if err != nil {
			return err
		}
		t.Category = c
	}
	if v, ok := str("recurring"); ok {
		r, err := schema.ParseRecurrence(v)
		if err != nil {
			return err
		}
		t.Recurring = r
	}
	if v, ok := str("due"); ok {
		d, err := dates.ParseDeadline(v, a.now())
		if err != nil {
			return err
		}
		t.Deadline = schema.FormatDate(d)
	}
	if v, ok := str("description"); ok {
		t.Description = v
	}
	if v, ok := str("attachment"); ok {
		t.AttachmentURL = v
	}
	return nil
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func newTaskAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Create a task",
		Example: `  opsctl task add "Replace boiler valve" -l 康薈 -a Chris -p emergency -d tomorrow
  opsctl task add -t "Fire drill" -c safety -r monthly -d 2025-04-01`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t schema.Task
			if err := applyTaskFlags(a, cmd, &t); err != nil {
				return err
			}
			if len(args) == 1 {
				if t.Title != "" {
					return fmt.Errorf("give the title either as an argument or with --title, not both")
				}
				t.Title = strings.TrimSpace(args[0])
			}
			if t.Title == "" {
				return fmt.Errorf("a title is required")
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			created, err := st.AddTask(cmd.Context(), t)
			if err != nil {
				return err
			}

			if jsonOut(cmd) {
				return writeJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created task %s: %s (due %s)\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(created.ID)), created.Title, created.Deadline)
			return nil
		},
	}
	taskFlags(cmd)
	addJSONFlag(cmd)
	return cmd
}

func newTaskListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			statusFilter, _ := f.GetString("status")
			location, _ := f.GetString("location")
			assignee, _ := f.GetString("assignee")
			open, _ := f.GetBool("open")

			var status schema.Status
			if statusFilter != "" {
				s, err := schema.ParseStatus(statusFilter)
				if err != nil {
					return err
				}
				status = s
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := st.Tasks(cmd.Context())
			if err != nil {
				return err
			}

			var out []schema.Task
			for _, t := range tasks {
				switch {
				case status != "" && t.Status != status:
				case open && t.Status == schema.StatusCompleted:
				case location != "" && t.Location != location:
				case assignee != "" && !slices.Contains(t.Assignees, assignee):
				default:
					out = append(out, t)
				}
			}

			if jsonOut(cmd) {
				if out == nil {
					out = []schema.Task{}
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printTasks(cmd.OutOrStdout(), a, out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringP("status", "s", "", "only tasks with this status")
	f.StringP("location", "l", "", "only tasks at this location")
	f.StringP("assignee", "a", "", "only tasks assigned to this person")
	f.Bool("open", false, "hide completed tasks")
	addJSONFlag(cmd)
	return cmd
}

func printTasks(w io.Writer, a *app, tasks []schema.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("No tasks"))
		return
	}

	today := a.now()
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		deadline := t.Deadline
		if t.IsRecurring() {
			deadline += " ↻"
		}
		if t.IsOverdue(today) {
			deadline = ui.RenderFail(deadline)
		}
		rows = append(rows, []string{
			shortID(t.ID),
			ui.RenderStatus(t.Status),
			ui.RenderPriority(t.Priority),
			deadline,
			t.Location,
			t.Title,
			strings.Join(t.Assignees, ", "),
		})
	}
	fmt.Fprintln(w, ui.Table([]string{"ID", "STATUS", "PRIORITY", "DEADLINE", "LOCATION", "TITLE", "ASSIGNEES"}, rows))
}

func newTaskShowCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			t, err := st.Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut(cmd) {
				return writeJSON(cmd.OutOrStdout(), t)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s\n\n", ui.RenderAccent(shortID(t.ID)), ui.RenderBold(t.Title))
			fmt.Fprintf(w, "Status:     %s\n", ui.RenderStatus(t.Status))
			fmt.Fprintf(w, "Priority:   %s\n", ui.RenderPriority(t.Priority))
			fmt.Fprintf(w, "Category:   %s\n", t.Category)
			fmt.Fprintf(w, "Location:   %s\n", t.Location)
			fmt.Fprintf(w, "Assignees:  %s\n", strings.Join(t.Assignees, ", "))
			fmt.Fprintf(w, "Deadline:   %s\n", t.Deadline)
			fmt.Fprintf(w, "Recurring:  %s\n", t.Recurring)
			if next, ok := t.NextOccurrence(a.now()); ok && t.IsRecurring() {
				fmt.Fprintf(w, "Next due:   %s\n", schema.FormatDate(next))
			}
			if t.AttachmentURL != "" {
				fmt.Fprintf(w, "Attachment: %s\n", t.AttachmentURL)
			}
			if t.Description != "" {
				fmt.Fprintf(w, "\n%s\n", t.Description)
			}
			if len(t.Logs) > 0 {
				fmt.Fprintf(w, "\nHistory:\n")
				for _, l := range t.Logs {
					fmt.Fprintf(w, "  %s  %-10s %s\n", ui.RenderMuted(l.Timestamp), l.User, l.Action)
				}
			}
			return nil
		},
	}
	addJSONFlag(cmd)
	return cmd
}

func newTaskUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Example: `  opsctl task update 1a2b3c4d --status in-progress
  opsctl task update 1a2b --assignee Chris --assignee May --due "next monday"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !anyChanged(cmd, taskFlagNames...) {
				return fmt.Errorf("nothing to update: pass at least one field flag")
			}
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			updated, err := st.UpdateTask(cmd.Context(), args[0], func(t *schema.Task) error {
				return applyTaskFlags(a, cmd, t)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated task %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(updated.ID)), updated.Title)
			return nil
		},
	}
	taskFlags(cmd)
	return cmd
}

func newTaskDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			t, err := st.SetTaskStatus(cmd.Context(), args[0], schema.StatusCompleted)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Completed task %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(t.ID)), t.Title)
			return nil
		},
	}
}

func newTaskDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			t, err := st.Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := st.DeleteTask(cmd.Context(), t.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted task %s: %s\n",
				ui.RenderPass("✓"), ui.RenderAccent(shortID(t.ID)), t.Title)
			return nil
		},
	}
}

func newTaskDueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show tasks due on a day and overdue tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := a.now()
			if on, _ := cmd.Flags().GetString("on"); on != "" {
				d, err := dates.ParseDeadline(on, a.now())
				if err != nil {
					return err
				}
				day = d
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			due, overdue, err := st.DueTasks(cmd.Context(), day)
			if err != nil {
				return err
			}

			if jsonOut(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string][]schema.Task{
					"due":     nonNilTasks(due),
					"overdue": nonNilTasks(overdue),
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s Overdue (%d)\n", ui.RenderFail("!"), len(overdue))
			printTasks(w, a, overdue)
			fmt.Fprintf(w, "\n%s Due %s (%d)\n", ui.RenderAccent("•"), schema.FormatDate(day), len(due))
			printTasks(w, a, due)
			return nil
		},
	}
	cmd.Flags().String("on", "", "day to check (default today)")
	addJSONFlag(cmd)
	return cmd
}

func nonNilTasks(tasks []schema.Task) []schema.Task {
	if tasks == nil {
		return []schema.Task{}
	}
	return tasks
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "print JSON")
}

func jsonOut(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
