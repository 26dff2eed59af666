package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/leandrodaf/perfdiff/internal/overlay"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/perfdiff"
	"github.com/spf13/cobra"
)

var (
	listScore string
	listLimit int
	showPage  int
	showPNG   string
)

func init() {
	recordingsListCmd.Flags().StringVarP(&listScore, "score", "s", "", "only recordings of this score")
	recordingsListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of recordings")
	recordingsShowCmd.Flags().IntVar(&showPage, "page", 0, "page to draw")
	recordingsShowCmd.Flags().StringVar(&showPNG, "png", "", "write the page overlay to this PNG file")

	recordingsCmd.AddCommand(recordingsListCmd, recordingsShowCmd)
	rootCmd.AddCommand(recordingsCmd)
}

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "Browse scored recordings",
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recordings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(perfdiff.WithSources(contracts.SourceKeyboard))
		if err != nil {
			return err
		}
		defer s.Close()

		summaries, err := s.Store().List(cmd.Context(), listScore, listLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%5s  %-20s  %-19s  %5s  %5s", "id", "score", "created", "notes", "edits")))
		for _, r := range summaries {
			fmt.Fprintf(out, "%5d  %-20s  %-19s  %5d  %5d\n",
				r.ID, r.ScoreID, r.CreatedAt.Local().Format(time.DateTime), r.Notes, r.Edits)
		}
		return nil
	},
}

var recordingsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Load a recording and draw its annotations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid recording id %q: %w", args[0], err)
		}

		var raster *overlay.RasterSurface
		opts := []perfdiff.Option{perfdiff.WithSources(contracts.SourceKeyboard)}
		if showPNG != "" {
			// Sized after the configured container so markers land where the renderer places them.
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			raster = overlay.NewRasterSurface(int(cfg.Overlay.ContainerWidth), int(cfg.Overlay.ContainerHeight))
			opts = append(opts, perfdiff.WithConfig(cfg), perfdiff.WithSurface(raster))
		}
		s, err := newSession(opts...)
		if err != nil {
			return err
		}
		defer s.Close()

		s.SetPage(showPage)
		rec, err := s.LoadRecording(cmd.Context(), id)
		if err != nil {
			return err
		}
		printRecording(cmd.OutOrStdout(), rec)

		if raster == nil {
			return nil
		}
		s.Renderer().Render()
		f, err := os.Create(showPNG)
		if err != nil {
			return err
		}
		if err := raster.EncodePNG(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d markers drawn to %s\n", s.Renderer().Count(), showPNG)
		return nil
	},
}
