package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/router"
)

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Manage the invite link of a private session",
}

var inviteShowCmd = &cobra.Command{
	Use:         "show <session>",
	Short:       "Print the session's invite link",
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runInviteShow,
}

var inviteRefreshCmd = &cobra.Command{
	Use:   "refresh <session>",
	Short: "Create or rotate the invite token",
	Long: `Create a new invite token for a session. Links built from the old
token stop working.`,
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runInviteRefresh,
}

var joinCmd = &cobra.Command{
	Use:   "join <token|link>",
	Short: "Join a private session with an invite token or link",
	Example: `  revify join 3f9c2e
  revify join https://revify.example/join/3f9c2e`,
	Args:        cobra.ExactArgs(1),
	Annotations: routeFor("/join/:token"),
	RunE:        runJoin,
}

func init() {
	inviteCmd.AddCommand(inviteShowCmd)
	inviteCmd.AddCommand(inviteRefreshCmd)
}

func runInviteShow(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	token, err := d.client.GetInviteToken(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("loading invite token: %w", err)
	}
	if token == "" {
		return fmt.Errorf("%w: run `revify invite refresh %s`", router.ErrNoInviteToken, args[0])
	}
	printInvite(cmd, d.cfg.WebURL, token)
	return nil
}

func runInviteRefresh(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	token, err := d.client.RefreshInviteToken(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("refreshing invite token: %w", err)
	}
	if token == "" {
		return router.ErrNoInviteToken
	}
	d.log.Info().Str("session", args[0]).Msg("invite token refreshed")
	printInvite(cmd, d.cfg.WebURL, token)
	return nil
}

func printInvite(cmd *cobra.Command, webURL, token string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token: %s\n", token)
	fmt.Fprintf(out, "Link:  %s\n", strings.TrimRight(webURL, "/")+router.JoinPath(token))
}

// The join route needs no sign-in to render, but redeeming a token does.
func runJoin(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	token := inviteToken(args[0])
	if token == "" {
		return errors.New("Invalid invite link")
	}

	d.auth.Init(cmd.Context())
	if !d.auth.SignedIn() {
		return fmt.Errorf("you need to sign in to join this session: %w", errNotSignedIn)
	}

	id, err := d.client.JoinSession(cmd.Context(), token)
	if err != nil {
		d.log.Warn().Err(err).Msg("joining session")
		return errors.New(api.Message(err, "Invalid invite link"))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Joined session %s\n", id)
	fmt.Fprintf(out, "Browse it with: revify browse %s\n", router.SessionPath(id))
	return nil
}

// inviteToken accepts a bare token, an in-app join path or a full join link.
func inviteToken(arg string) string {
	arg = strings.TrimSpace(arg)
	path := arg
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" {
		path = u.Path
	}
	if strings.Contains(path, "/") {
		route := router.Match(path)
		if route.Name != router.Join {
			return ""
		}
		token, err := url.PathUnescape(route.Param("token"))
		if err != nil {
			return ""
		}
		return token
	}
	return arg
}
