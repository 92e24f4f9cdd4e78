package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/model"
	"github.com/sprite-ai/revify/internal/router"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Manage review sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:         "list",
	Aliases:     []string{"ls"},
	Short:       "List the sessions you can see",
	Args:        cobra.NoArgs,
	Annotations: routeFor("/sessions"),
	RunE:        runSessionsList,
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session",
	Long: `Create a session. Upload code into it with 'revify upload'.

Visibility:
  private  only invited users, who join with the invite link
  link     anyone with the link (default)
  public   anyone`,
	Args:        cobra.NoArgs,
	Annotations: routeFor("/sessions"),
	RunE:        runSessionsCreate,
}

var sessionsShowCmd = &cobra.Command{
	Use:         "show <session>",
	Short:       "Show a session with its files and comment counts",
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:         "delete <session>",
	Aliases:     []string{"rm"},
	Short:       "Delete a session and everything in it",
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions"),
	RunE:        runSessionsDelete,
}

var sessionsSettingsCmd = &cobra.Command{
	Use:   "settings <session>",
	Short: "Change a session's title, description, visibility or comment permission",
	Long: `Change session settings. Only the flags you pass are sent.

Example:
  revify sessions settings 6650 --visibility private --comment-permission invited`,
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runSessionsSettings,
}

func init() {
	sessionsCreateCmd.Flags().StringP("title", "t", "", "session title (required)")
	sessionsCreateCmd.Flags().StringP("description", "d", "", "session description")
	sessionsCreateCmd.Flags().String("visibility", string(model.VisibilityLink), "private, link or public")

	sessionsDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	sessionsSettingsCmd.Flags().StringP("title", "t", "", "new title")
	sessionsSettingsCmd.Flags().StringP("description", "d", "", "new description")
	sessionsSettingsCmd.Flags().String("visibility", "", "private, link or public")
	sessionsSettingsCmd.Flags().String("comment-permission", "", "owner, invited or everyone")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsSettingsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()

	sessions, err := d.client.ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions yet. Create one with: revify sessions create --title <title>")
		return nil
	}

	me := d.auth.CurrentUser()
	fmt.Fprintf(out, "%-24s  %-32s  %-9s  %-9s  %-16s  %s\n", "ID", "TITLE", "VISIBILITY", "STATUS", "OWNER", "CREATED")
	for _, s := range sessions {
		owner := s.Owner.Name()
		if s.OwnedBy(me) {
			owner = "you"
		}
		fmt.Fprintf(out, "%-24s  %-32s  %-9s  %-9s  %-16s  %s\n",
			s.ID,
			clip(s.Title, 32),
			s.Visibility.Label(),
			s.Status,
			clip(owner, 16),
			humanize.Time(s.CreatedAt),
		)
	}
	return nil
}

func runSessionsCreate(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	visFlag, _ := cmd.Flags().GetString("visibility")

	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is required")
	}
	vis, err := model.ParseVisibility(visFlag)
	if err != nil {
		return err
	}

	s, err := d.client.CreateSession(cmd.Context(), api.CreateSessionInput{
		Title:             title,
		Description:       strings.TrimSpace(description),
		Visibility:        vis,
		CommentPermission: model.DefaultCommentPermission,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	d.log.Info().Str("session", s.ID).Msg("session created")

	fmt.Fprintf(out, "Created session %s (%s)\n", s.ID, s.Visibility.Label())
	if link, err := router.ShareLink(d.cfg.WebURL, *s); err == nil {
		fmt.Fprintf(out, "Link: %s\n", link)
	}
	fmt.Fprintf(out, "\nUpload code with: revify upload %s <archive.zip>\n", s.ID)
	return nil
}

// sessionSummary is everything `sessions show` prints.
type sessionSummary struct {
	session  *model.Session
	files    []model.FileNode
	comments []model.Comment
	treeErr  error
}

func fetchSummary(ctx context.Context, client *api.Client, id string) (*sessionSummary, error) {
	sum := &sessionSummary{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := client.GetSession(gctx, id)
		sum.session = s
		return err
	})
	g.Go(func() error {
		cs, err := client.ListComments(gctx, id)
		sum.comments = cs
		return err
	})
	g.Go(func() error {
		// The tree only exists once the upload finished.
		sum.files, sum.treeErr = client.FileTree(gctx, id)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()

	sum, err := fetchSummary(cmd.Context(), d.client, args[0])
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("session %s not found", args[0])
		}
		return fmt.Errorf("loading session: %w", err)
	}
	s := sum.session

	fmt.Fprintln(out, s.Title)
	if s.Description != "" {
		fmt.Fprintln(out, s.Description)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  id:          %s\n", s.ID)
	fmt.Fprintf(out, "  owner:       %s\n", s.Owner.Name())
	fmt.Fprintf(out, "  visibility:  %s\n", s.Visibility.Label())
	if s.CommentPermission != "" {
		fmt.Fprintf(out, "  comments by: %s\n", s.CommentPermission)
	}
	fmt.Fprintf(out, "  status:      %s\n", s.Status)
	fmt.Fprintf(out, "  created:     %s\n", humanize.Time(s.CreatedAt))
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "  expires:     %s\n", humanize.Time(s.ExpiresAt))
	}
	if link, err := router.ShareLink(d.cfg.WebURL, *s); err == nil {
		fmt.Fprintf(out, "  link:        %s\n", link)
	}

	if s.IsReady() && sum.treeErr == nil {
		var nFiles int
		var size int64
		for _, f := range sum.files {
			if !f.IsDirectory {
				nFiles++
				size += f.Size
			}
		}
		fmt.Fprintf(out, "  files:       %d (%s)\n", nFiles, humanize.Bytes(uint64(size)))
	} else if sum.treeErr != nil && s.IsReady() {
		d.log.Warn().Err(sum.treeErr).Str("session", s.ID).Msg("loading file tree")
		fmt.Fprintf(out, "  files:       %s\n", "Failed to load file tree")
	} else if s.OwnedBy(d.auth.CurrentUser()) {
		fmt.Fprintf(out, "  files:       none yet, run: revify upload %s <archive.zip>\n", s.ID)
	} else {
		fmt.Fprintf(out, "  files:       %s\n", "Waiting for owner to upload code...")
	}

	var open, resolved int
	for _, c := range sum.comments {
		if !c.IsRoot() {
			continue
		}
		if c.Resolved {
			resolved++
		} else {
			open++
		}
	}
	fmt.Fprintf(out, "  threads:     %d open, %d resolved\n", open, resolved)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()
	id := args[0]

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		ok, err := confirm(cmd.InOrStdin(), out,
			"Are you sure you want to delete this session? This action cannot be undone. [y/N] ")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	if err := d.client.DeleteSession(cmd.Context(), id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	d.log.Info().Str("session", id).Msg("session deleted")
	fmt.Fprintf(out, "Deleted session %s\n", id)
	return nil
}

func runSessionsSettings(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	flags := cmd.Flags()

	var in api.SessionSettings
	changed := false
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		v = strings.TrimSpace(v)
		if v == "" {
			return errors.New("title is required")
		}
		in.Title = &v
		changed = true
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		in.Description = &v
		changed = true
	}
	if flags.Changed("visibility") {
		raw, _ := flags.GetString("visibility")
		v, err := model.ParseVisibility(raw)
		if err != nil {
			return err
		}
		in.Visibility = &v
		changed = true
	}
	if flags.Changed("comment-permission") {
		raw, _ := flags.GetString("comment-permission")
		v := model.CommentPermission(raw)
		if !v.Valid() {
			return fmt.Errorf("invalid comment permission %q (want owner, invited or everyone)", raw)
		}
		in.CommentPermission = &v
		changed = true
	}
	if !changed {
		return errors.New("nothing to change, pass at least one flag")
	}

	s, err := d.client.UpdateSessionSettings(cmd.Context(), args[0], in)
	if err != nil {
		return fmt.Errorf("updating settings: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s, %s, comments by %s\n",
		s.ID, s.Title, s.Visibility.Label(), s.CommentPermission)
	return nil
}

// confirm asks a yes/no question on in. Anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// clip shortens s to max runes with a trailing ellipsis.
func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
