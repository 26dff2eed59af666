// Package scoringstub is a development scoring service. It speaks the client's wire protocol and grades
// performances with a plain edit-distance alignment over pitches.
package scoringstub

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/leandrodaf/perfdiff/internal/codec"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/internal/transport"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/rs/cors"
)

const maxBodyBytes = 64 << 20

// Server grades submissions against reference notes.
type Server struct {
	refs   reference.Provider
	logger contracts.Logger
	now    func() time.Time
	router *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces time.Now for createdAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a server over refs.
func New(refs reference.Provider, logger contracts.Logger, opts ...Option) *Server {
	s := &Server{refs: refs, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/notes", s.handleNotes).Methods(http.MethodPost)
	r.HandleFunc("/audio", s.handleAudio).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler is the router wrapped with CORS for browser clients.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{
			"Content-Type",
			transport.HeaderScoreID,
			transport.HeaderReferenceID,
			transport.HeaderPage,
			transport.HeaderRequestID,
		},
		ExposedHeaders: []string{transport.HeaderRequestID},
	}).Handler(s.router)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("Scoring stub listening", s.logger.Field().String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(codec.DefaultSchemaJSON())
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	s.grade(w, r, func(body []byte) ([]contracts.NoteEvent, error) {
		list, err := codec.DecodeNoteListWith(codec.DefaultSchema(), body)
		if err != nil {
			return nil, err
		}
		return list.Notes, nil
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	s.grade(w, r, func(body []byte) ([]contracts.NoteEvent, error) {
		samples, rate, err := decodeWAV(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		return transcribe(samples, rate), nil
	})
}

func (s *Server) grade(w http.ResponseWriter, r *http.Request, performed func([]byte) ([]contracts.NoteEvent, error)) {
	reqID := r.Header.Get(transport.HeaderRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(transport.HeaderRequestID, reqID)

	scoreID := r.Header.Get(transport.HeaderScoreID)
	if scoreID == "" {
		http.Error(w, "missing "+transport.HeaderScoreID, http.StatusBadRequest)
		return
	}
	page, _ := strconv.Atoi(r.Header.Get(transport.HeaderPage))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	perf, err := performed(body)
	if err != nil {
		s.logger.Warn("Rejecting malformed submission",
			s.logger.Field().String("requestId", reqID),
			s.logger.Field().Error("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ref, err := s.refs.Load(r.Context(), scoreID)
	if errors.Is(err, reference.ErrUnknownScore) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	rec := Score(ref.Notes, perf, ref.PageSizes)
	rec.PlayedNotes.Page = page
	rec.CreatedAt = s.now().UnixMilli()

	out, err := codec.EncodeRecording(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("Graded submission",
		s.logger.Field().String("requestId", reqID),
		s.logger.Field().String("score", scoreID),
		s.logger.Field().Int("performed", len(perf)),
		s.logger.Field().Int("edits", len(rec.ComputedEdits.Edits)))

	w.Header().Set("Content-Type", transport.ContentTypeNotes)
	_, _ = w.Write(out)
}

// Score aligns a performance against the reference and lays the edits out on synthetic pages.
func Score(ref, perf []contracts.NoteEvent, pageSizes []float64) contracts.Recording {
	layout := NewLayout(pageSizes)
	steps := align(ref, perf)
	g := newGrader(layout, ref, perf)
	return contracts.Recording{
		PlayedNotes: contracts.NoteList{Notes: perf, Size: layout.Pages(len(ref))},
		ComputedEdits: contracts.ScoringResult{
			Edits:         g.edits(steps),
			Size:          layout.Pages(len(ref)),
			UnstableRate:  g.unstableRate(steps),
			TempoSections: tempoSections(perf),
		},
	}
}
