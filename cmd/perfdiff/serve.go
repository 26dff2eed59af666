package main

import (
	"os"
	"os/signal"
	"path/filepath"

	"github.com/leandrodaf/perfdiff/internal/config"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/internal/scoringstub"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveScores string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveScores, "scores", "", "directory of reference Standard MIDI Files named <score>.mid")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve-stub",
	Short: "Run a local scoring service for development",
	Long: `serve-stub answers the scoring service endpoints with a pitch alignment against reference
notes read from Standard MIDI Files. It is meant for development, not for grading.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		dir := serveScores
		if dir == "" {
			dir = filepath.Join(config.Dir(), "scores")
		}
		log := newLogger()
		log.Info("Reading reference notes",
			log.Field().String("scores", dir))
		return scoringstub.New(&reference.SMFProvider{Dir: dir}, log).ListenAndServe(ctx, serveAddr)
	},
}
