package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/seniorcare/opscentre/internal/remote"
	"github.com/seniorcare/opscentre/internal/schema"
	"github.com/seniorcare/opscentre/internal/sync"
	"github.com/seniorcare/opscentre/internal/ui"
)

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Sync with the web app's Gist backup",
		Long: `Move data between the local store and the remote backup.

The side with the newer lastUpdated wins. pull only ever downloads; push
downloads first when the remote is newer and uploads otherwise. Equal
timestamps mean both sides already match.`,
	}
	cmd.AddCommand(
		newSyncSetupCmd(a),
		newSyncRunCmd(a, sync.ModePush),
		newSyncRunCmd(a, sync.ModePull),
		newSyncStatusCmd(a),
	)
	return cmd
}

func newSyncSetupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Configure the sync provider, token and gist",
		Long: `Configure sync. Without flags on a terminal an interactive form opens.

The gist may be given as its id or its URL. Leave it empty to create a new
secret gist on the first push.`,
		Example: `  opsctl sync setup --token ghp_xxx --gist https://gist.github.com/me/0123456789abcdef0123
  opsctl sync setup --provider google --script-url https://script.google.com/macros/s/xxx/exec
  opsctl sync setup --disable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			current, err := st.Settings(cmd.Context())
			if err != nil {
				return err
			}

			next := current
			flagged := anyChanged(cmd, "provider", "token", "gist", "script-url", "enable", "disable")
			switch {
			case flagged:
				if err := applySetupFlags(cmd, &next); err != nil {
					return err
				}
			case a.interactive:
				if err := runSetupForm(&next); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("Setup cancelled"))
						return nil
					}
					return err
				}
			default:
				return fmt.Errorf("no settings given: pass flags such as --token and --gist, or run on a terminal")
			}

			if err := normalizeSettings(&next); err != nil {
				return err
			}
			saved, err := st.UpdateSettings(cmd.Context(), func(s *schema.SyncSettings) error {
				*s = next
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Sync settings saved\n", ui.RenderPass("✓"))
			printSettings(cmd.OutOrStdout(), saved)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("provider", "", "github or google")
	f.String("token", "", "GitHub personal access token with the gist scope")
	f.String("gist", "", "gist id or URL (empty creates a new gist on push)")
	f.String("script-url", "", "Google Apps Script web app URL")
	f.Bool("enable", false, "enable sync")
	f.Bool("disable", false, "disable sync")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
	return cmd
}

func applySetupFlags(cmd *cobra.Command, s *schema.SyncSettings) error {
	f := cmd.Flags()
	if f.Changed("provider") {
		v, _ := f.GetString("provider")
		switch p := schema.Provider(strings.ToLower(strings.TrimSpace(v))); p {
		case schema.ProviderGitHub, schema.ProviderScript:
			s.Provider = p
		default:
			return fmt.Errorf("unknown provider %q (want github or google)", v)
		}
	}
	if f.Changed("token") {
		s.Credential, _ = f.GetString("token")
	}
	if f.Changed("gist") {
		s.RemoteID, _ = f.GetString("gist")
	}
	if f.Changed("script-url") {
		s.Endpoint, _ = f.GetString("script-url")
	}
	if v, _ := f.GetBool("enable"); v {
		s.Enabled = true
	}
	if v, _ := f.GetBool("disable"); v {
		s.Enabled = false
	}
	return nil
}

// normalizeSettings trims input and stores the gist id in canonical form.
func normalizeSettings(s *schema.SyncSettings) error {
	s.Credential = strings.TrimSpace(s.Credential)
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	raw := strings.TrimSpace(s.RemoteID)
	if raw == "" {
		s.RemoteID = ""
		return nil
	}
	if remote.LooksLikeCredential(raw) {
		return fmt.Errorf("the gist field holds a GitHub token: paste the token with --token and the gist id or URL with --gist")
	}
	id := remote.Sanitize(raw)
	if !remote.IsCanonical(id) {
		return fmt.Errorf("%q is not a gist id: use the 20 or 32 character id or the gist URL, not a profile URL", raw)
	}
	s.RemoteID = id
	return nil
}

func runSetupForm(s *schema.SyncSettings) error {
	provider := string(s.Provider)
	if provider == "" {
		provider = string(schema.ProviderGitHub)
	}
	enabled := s.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Options(
					huh.NewOption("GitHub Gist", string(schema.ProviderGitHub)),
					huh.NewOption("Google Apps Script", string(schema.ProviderScript)),
				).
				Value(&provider),
			huh.NewConfirm().
				Title("Enable sync?").
				Value(&enabled),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub token").
				Description("A personal access token with the gist scope").
				EchoMode(huh.EchoModePassword).
				Value(&s.Credential),
			huh.NewInput().
				Title("Gist ID or URL").
				Description("Leave empty to create a new secret gist on the first push").
				Validate(func(v string) error {
					c := *s
					c.RemoteID = v
					return normalizeSettings(&c)
				}).
				Value(&s.RemoteID),
		).WithHideFunc(func() bool { return provider != string(schema.ProviderGitHub) }),
		huh.NewGroup(
			huh.NewInput().
				Title("Apps Script URL").
				Value(&s.Endpoint),
		).WithHideFunc(func() bool { return provider != string(schema.ProviderScript) }),
	)
	if err := form.Run(); err != nil {
		return err
	}
	s.Provider = schema.Provider(provider)
	s.Enabled = enabled
	return nil
}

func printSettings(w io.Writer, s schema.SyncSettings) {
	enabled := ui.RenderWarn("no")
	if s.Enabled {
		enabled = ui.RenderPass("yes")
	}
	fmt.Fprintf(w, "   Provider: %s\n", s.Provider)
	fmt.Fprintf(w, "   Enabled:  %s\n", enabled)
	switch s.Provider {
	case schema.ProviderScript:
		fmt.Fprintf(w, "   Script:   %s\n", orNone(s.Endpoint))
	default:
		fmt.Fprintf(w, "   Token:    %s\n", orNone(maskToken(s.Credential)))
		fmt.Fprintf(w, "   Gist:     %s\n", orNone(s.RemoteID))
	}
}

func maskToken(t string) string {
	switch {
	case t == "":
		return ""
	case len(t) <= 8:
		return "****"
	}
	return t[:4] + "****" + t[len(t)-2:]
}

func orNone(s string) string {
	if s == "" {
		return ui.RenderMuted("(none)")
	}
	return s
}

func newSyncRunCmd(a *app, mode sync.Mode) *cobra.Command {
	short := "Download the remote copy if it is newer"
	if mode == sync.ModePush {
		short = "Upload local data, or download it first if the remote is newer"
	}
	cmd := &cobra.Command{
		Use:   mode.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force := false
			if mode == sync.ModePush {
				force, _ = cmd.Flags().GetBool("force")
			}

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			res := a.reconciler(st).Run(cmd.Context(), sync.Request{Mode: mode, Force: force})

			if jsonOut(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), res)
			}
			if res.Outcome == sync.OutcomeFailed {
				return fmt.Errorf("%s failed: %s", mode, res.Message)
			}
			return nil
		},
	}
	if mode == sync.ModePush {
		cmd.Flags().Bool("force", false, "upload even when both sides carry the same lastUpdated")
	}
	addJSONFlag(cmd)
	return cmd
}

func printResult(w io.Writer, res sync.Result) {
	switch res.Outcome {
	case sync.OutcomePulled:
		fmt.Fprintf(w, "%s Pulled remote data (last updated %s)\n",
			ui.RenderPass("✓"), res.LastUpdated.Local().Format("2006-01-02 15:04:05"))
	case sync.OutcomePushed:
		fmt.Fprintf(w, "%s Pushed to gist %s\n", ui.RenderPass("✓"), ui.RenderAccent(orNone(res.RemoteID)))
	case sync.OutcomeNoop:
		msg := res.Message
		if msg == "" {
			msg = "nothing to do"
		}
		fmt.Fprintf(w, "%s %s\n", ui.RenderMuted("•"), msg)
	case sync.OutcomeSkipped:
		fmt.Fprintf(w, "%s %s\n", ui.RenderWarn("⚠"), res.Message)
	}
}

func newSyncStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync settings and freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			settings, err := st.Settings(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := st.Stats(cmd.Context(), a.now())
			if err != nil {
				return err
			}

			if jsonOut(cmd) {
				settings.Credential = maskToken(settings.Credential)
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"settings": settings,
					"stats":    stats,
				})
			}

			now := a.now()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n%s Sync Status\n\n", ui.RenderAccent("⇅"))
			printSettings(w, settings)
			lastSynced := "never"
			if settings.LastSynced != nil {
				lastSynced = ui.Ago(*settings.LastSynced, now)
			}
			fmt.Fprintf(w, "   Synced:   %s\n", lastSynced)
			fmt.Fprintf(w, "   Local:    %s\n\n", ui.Ago(stats.LastUpdated, now))
			fmt.Fprintf(w, "Tasks: %s (%d overdue, %d due today)\n", ui.Count(stats.Tasks), stats.Overdue, stats.DueToday)
			for _, s := range schema.Statuses {
				fmt.Fprintf(w, "   %s: %d\n", ui.RenderStatus(s), stats.ByStatus[s])
			}
			fmt.Fprintf(w, "Notes: %s\n", ui.Count(stats.Notes))
			fmt.Fprintf(w, "Docs:  %s\n", ui.Count(stats.Docs))
			return nil
		},
	}
	addJSONFlag(cmd)
	return cmd
}
