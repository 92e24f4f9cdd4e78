package cli

import (
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/tui"
	"github.com/sprite-ai/revify/internal/upload"
)

var browseCmd = &cobra.Command{
	Use:   "browse [path|link]",
	Short: "Open the interactive review UI",
	Long: `Open the interactive terminal UI. It starts at the home screen unless
given an in-app path or a link copied from the web app.

Examples:
  revify browse
  revify browse /sessions
  revify browse https://revify.example/join/3f9c2e`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().Bool("no-browser", false, "never open links in the browser")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)

	start := "/"
	if len(args) == 1 {
		start = startPath(args[0])
	}

	opts := tui.Options{
		Backend:   d.client,
		Auth:      d.auth,
		Connector: upload.ClientConnector(d.client),
		WebURL:    d.cfg.WebURL,
		OpenURL:   openBrowser,
		Start:     start,
		Logger:    d.log,
	}
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); noBrowser {
		opts.OpenURL = nil
	}

	d.log.Info().Str("start", start).Msg("starting tui")
	return tui.Run(cmd.Context(), opts)
}

// startPath turns a link or a path into an in-app path.
func startPath(arg string) string {
	arg = strings.TrimSpace(arg)
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" {
		p := u.EscapedPath()
		if u.RawQuery != "" {
			p += "?" + u.RawQuery
		}
		arg = p
	}
	if !strings.HasPrefix(arg, "/") {
		arg = "/" + arg
	}
	return arg
}
