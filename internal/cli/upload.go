package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"

	"github.com/sprite-ai/revify/internal/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <session> <archive.zip>",
	Short: "Upload a ZIP of your code into a session",
	Long: `Upload a ZIP archive into a session and follow server-side processing
until the files are ready to review.`,
	Args:        cobra.ExactArgs(2),
	Annotations: routeFor("/sessions/:id"),
	RunE:        runUpload,
}

func init() {
	uploadCmd.Flags().BoolP("quiet", "q", false, "only print the final result")
}

func runUpload(cmd *cobra.Command, args []string) error {
	d := depsFrom(cmd)
	out := cmd.OutOrStdout()
	sessionID, path := args[0], args[1]
	quiet, _ := cmd.Flags().GetBool("quiet")

	completed := 0
	tracker := upload.NewTracker(d.client, upload.ClientConnector(d.client), func() { completed++ })
	defer tracker.Close()

	if err := tracker.Select(path); err != nil {
		if errors.Is(err, upload.ErrNotZip) {
			return errors.New("only ZIP files are allowed")
		}
		return err
	}

	if !quiet {
		fmt.Fprintf(out, "%s %s\n", upload.MsgUploading, tracker.State().File)
	}
	if err := tracker.Start(cmd.Context(), sessionID); err != nil {
		d.log.Error().Err(err).Str("session", sessionID).Msg("upload failed")
		return fmt.Errorf("%s: %w", upload.MsgUploadFailed, err)
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	var p progressPrinter
	if !quiet {
		p = progressPrinter{w: out, bar: bar}
	}
	final := tracker.Wait(cmd.Context(), p.print)
	p.finish()

	switch final.Phase {
	case upload.Done:
		d.log.Info().Str("session", sessionID).Str("upload", final.UploadID).Int("refreshes", completed).Msg("upload complete")
		fmt.Fprintf(out, "Upload complete. Browse it with: revify browse /sessions/%s\n", sessionID)
		return nil
	case upload.Failed:
		return errors.New(final.Err)
	default:
		if err := cmd.Context().Err(); err != nil {
			return fmt.Errorf("upload interrupted: %w", err)
		}
		return errors.New(upload.MsgConnectionLost)
	}
}

// progressPrinter redraws one status line per processing event.
type progressPrinter struct {
	w     io.Writer
	bar   progress.Model
	drawn bool
}

func (p *progressPrinter) print(st upload.State) {
	if p.w == nil {
		return
	}
	fmt.Fprintf(p.w, "\r%s %3d%%  %s\033[K", p.bar.ViewAs(float64(st.Percent)/100), st.Percent, st.Message)
	p.drawn = true
}

func (p *progressPrinter) finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
