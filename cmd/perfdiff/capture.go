package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/perfdiff/internal/signals"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/perfdiff"
	"github.com/spf13/cobra"
)

var (
	captureScore  string
	captureSource string
	capturePage   int
)

func init() {
	captureCmd.Flags().StringVarP(&captureScore, "score", "s", "", "score id to play against")
	captureCmd.Flags().StringVar(&captureSource, "source", "", "input source: midi or audio (default from preferences)")
	captureCmd.Flags().IntVar(&capturePage, "page", 0, "focused page")
	_ = captureCmd.MarkFlagRequired("score")
	rootCmd.AddCommand(captureCmd)
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record a performance and show how it differs from the score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		s, err := newSession(
			perfdiff.WithSources(contracts.SourceMIDI, contracts.SourceAudio),
			perfdiff.WithSoundFeedback(),
			perfdiff.WithDesktopNotifications(),
		)
		if err != nil {
			return err
		}
		defer s.Close()

		if captureSource != "" {
			if err := s.SelectSource(contracts.SourceKind(captureSource)); err != nil {
				return err
			}
		}
		s.Navigate(captureScore)
		s.SetPage(capturePage)
		if err := s.Prepare(ctx); err != nil {
			return err
		}

		results := make(chan *contracts.ScoringResult, 1)
		defer signals.Subscribe(s.Bus(), func(r contracts.ResultReady) {
			select {
			case results <- r.Result:
			default:
			}
		})()

		if err := s.Controller().Start(ctx); err != nil {
			return userError(err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Recording from %s. Press Enter to stop.\n", s.Controller().Source().Kind())

		enter := make(chan struct{})
		go func() {
			_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			close(enter)
		}()

		select {
		case result := <-results:
			printResult(out, result)
			return nil
		case <-enter:
		case <-ctx.Done():
		}

		// Submission must outlive the interrupt that ended the recording.
		rec, err := s.Controller().Stop(context.WithoutCancel(ctx))
		if err != nil {
			return userError(err)
		}
		if rec == nil {
			// An auto-stop already finalized the session.
			select {
			case result := <-results:
				printResult(out, result)
			case <-time.After(s.Config.Timeout()):
			}
			return nil
		}
		printRecording(out, rec)
		return nil
	},
}

// userError replaces err with its user-facing message when it has one.
func userError(err error) error {
	if contracts.IsUserVisible(err) {
		return errors.New(errorStyle.Render(contracts.UserMessage(err)))
	}
	return err
}
