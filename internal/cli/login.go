package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/api"
	"github.com/sprite-ai/revify/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the code-review backend",
	Long: `Sign in with Google through the browser.

The backend authenticates the CLI with the same session cookie the browser
gets. After signing in, copy that cookie and hand it to revify:

  revify login --cookie revify.sid=<value>`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().String("cookie", "", "session cookie as name=value")
	loginCmd.Flags().Bool("no-browser", false, "print the sign-in URL instead of opening it")
}

func runLogin(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()

	raw, _ := cmd.Flags().GetString("cookie")
	if raw == "" {
		loginURL := d.auth.LoginURL("")
		noBrowser, _ := cmd.Flags().GetBool("no-browser")
		if !noBrowser {
			if err := openBrowser(loginURL); err != nil {
				d.log.Warn().Err(err).Msg("failed to open browser")
				noBrowser = true
			} else {
				fmt.Fprintln(out, "Opened your browser to sign in.")
			}
		}
		if noBrowser {
			fmt.Fprintln(out, "Open this URL to sign in:")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "  "+loginURL)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Then run: revify login --cookie <name>=<value>")
		return nil
	}

	cookie, err := parseCookie(raw)
	if err != nil {
		return err
	}
	d.client.SetCookies([]*http.Cookie{cookie})

	u, err := d.client.Me(cmd.Context())
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return errors.New("the backend did not accept that cookie")
		}
		return fmt.Errorf("checking sign-in: %w", err)
	}

	creds := config.NewCredentials(d.cfg.APIURL, []*http.Cookie{cookie})
	if err := config.SaveCredentials(d.cfg.CredentialsFile(), creds); err != nil {
		return err
	}
	d.auth.SetUser(u)
	d.log.Info().Str("user", u.ID).Msg("signed in")

	fmt.Fprintf(out, "Signed in as %s", u.DisplayName)
	if u.Email != "" {
		fmt.Fprintf(out, " <%s>", u.Email)
	}
	fmt.Fprintln(out)
	return nil
}

func parseCookie(raw string) (*http.Cookie, error) {
	name, value, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok || name == "" || value == "" {
		return nil, fmt.Errorf("invalid cookie %q, want name=value", raw)
	}
	return &http.Cookie{Name: name, Value: value, Path: "/"}, nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)

	if err := d.auth.Logout(cmd.Context()); err != nil && !errors.Is(err, api.ErrUnauthorized) {
		d.log.Warn().Err(err).Msg("backend logout failed")
	}
	if err := config.RemoveCredentials(d.cfg.CredentialsFile()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	d.auth.Init(cmd.Context())

	u := d.auth.CurrentUser()
	if u == nil {
		return errNotSignedIn
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", u.DisplayName)
	if u.Email != "" {
		fmt.Fprintf(out, "  email:    %s\n", u.Email)
	}
	if u.Provider != "" {
		fmt.Fprintf(out, "  provider: %s\n", u.Provider)
	}
	fmt.Fprintf(out, "  id:       %s\n", u.ID)
	return nil
}

// openBrowser opens a URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
