package main

import (
	"context"
	"fmt"
	"time"

	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/leandrodaf/perfdiff/sdk/perfdiff"
)

func main() {
	log := logger.NewDevelopmentLogger()

	session, err := perfdiff.NewSession(
		perfdiff.WithLogger(log),
		perfdiff.WithSources(contracts.SourceKeyboard),
	)
	if err != nil {
		log.Error("Failed to create session", log.Field().Error("error", err))
		return
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.SelectSource(contracts.SourceKeyboard); err != nil {
		log.Error("Keyboard source unavailable", log.Field().Error("error", err))
		return
	}
	session.Navigate("etude")
	if err := session.Prepare(ctx); err != nil {
		log.Error("Score not ready", log.Field().Error("error", err))
		return
	}

	if err := session.Controller().Start(ctx); err != nil {
		log.Error("Failed to start capture", log.Field().Error("error", err))
		return
	}
	// C major scale, one key every 200ms.
	for _, k := range []string{"a", "s", "d", "f", "g", "h", "j", "k"} {
		session.Keyboard.Press(k)
		time.Sleep(200 * time.Millisecond)
		session.Keyboard.Release(k)
	}

	rec, err := session.Controller().Stop(ctx)
	if err != nil {
		log.Error("Scoring failed", log.Field().String("reason", contracts.UserMessage(err)))
		return
	}
	for _, e := range rec.ComputedEdits.Edits {
		fmt.Printf("%-10s ref #%d played #%d\n", e.Operation, e.Pos, e.TPos)
	}
	fmt.Println("Annotations drawn:", session.Renderer().Count())
}
