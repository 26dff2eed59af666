package scoringstub

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leandrodaf/perfdiff/internal/codec"
	"github.com/leandrodaf/perfdiff/internal/input/audio"
	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/internal/reference"
	"github.com/leandrodaf/perfdiff/internal/transport"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notes(pitches ...int) []contracts.NoteEvent {
	out := make([]contracts.NoteEvent, len(pitches))
	for i, p := range pitches {
		out[i] = contracts.NoteEvent{Pitch: p, StartTime: 0.5 * float64(i), Duration: 0.4, Velocity: 0.7}
	}
	return out
}

func ops(steps []step) []step {
	var out []step
	for _, s := range steps {
		if s.op != "" {
			out = append(out, s)
		}
	}
	return out
}

func TestAlign(t *testing.T) {
	assert.Equal(t, []step{
		{op: contracts.OpSubstitute, pos: 1, tPos: 1},
		{op: contracts.OpInsert, pos: 4, tPos: 4},
	}, ops(align(notes(60, 62, 64, 65), notes(60, 63, 64, 65, 67))))

	assert.Equal(t, []step{
		{op: contracts.OpDelete, pos: 1, tPos: 1},
	}, ops(align(notes(60, 62, 64), notes(60, 64))))

	assert.Empty(t, ops(align(notes(60, 62), notes(60, 62))))
	assert.Len(t, ops(align(nil, notes(60, 62))), 2)
	assert.Len(t, ops(align(notes(60, 62), nil)), 2)
}

func TestScoreGeometry(t *testing.T) {
	ref := notes(60, 62, 64, 65)
	perf := notes(60, 63, 64, 65, 67)
	perf[4].Velocity = 0.1
	rec := Score(ref, perf, nil)

	edits := rec.ComputedEdits.Edits
	require.Len(t, edits, 2)

	sub := edits[0]
	assert.Equal(t, contracts.OpSubstitute, sub.Operation)
	require.True(t, sub.SChar.HasBBox())
	require.True(t, sub.TChar.HasBBox())
	assert.Equal(t, 5, sub.Confidence())
	assert.Greater(t, sub.SChar.BBox[1], 0.0)
	assert.NotEqual(t, sub.SChar.BBox[1], sub.TChar.BBox[1], "the played pitch sits at its own height")

	ins := edits[1]
	assert.Equal(t, contracts.OpInsert, ins.Operation)
	assert.Nil(t, ins.SChar)
	require.True(t, ins.TChar.HasBBox())
	assert.Equal(t, 1, ins.Confidence(), "quiet extra notes are low confidence")

	assert.Equal(t, []float64{1240, 1754}, rec.ComputedEdits.Size)
	require.Len(t, rec.ComputedEdits.TempoSections, 1)
	assert.InDelta(t, 120, rec.ComputedEdits.TempoSections[0].BPM, 1e-9)
}

func TestScoreSpansPages(t *testing.T) {
	layout := NewLayout(nil)
	ref := make([]contracts.NoteEvent, layout.PerPage()+3)
	for i := range ref {
		ref[i] = contracts.NoteEvent{Pitch: 40 + i%50, StartTime: float64(i) * 0.25, Duration: 0.2}
	}
	rec := Score(ref, ref[:len(ref)-1], nil)

	require.Len(t, rec.ComputedEdits.Edits, 1)
	del := rec.ComputedEdits.Edits[0]
	assert.Equal(t, contracts.OpDelete, del.Operation)
	assert.Equal(t, 1, del.SChar.Page)
	assert.Len(t, rec.ComputedEdits.Size, 4)

	page, box := layout.Box(0, 96)
	assert.Zero(t, page)
	assert.InDelta(t, layout.Margin, box[1], 1e-9, "the highest pitch sits at the top of its row")
}

func newStub(t *testing.T) (*httptest.Server, *transport.Client) {
	t.Helper()
	refs := reference.NewMemory()
	refs.Put(&reference.Notes{ScoreID: "etude", ReferenceID: "etude.mid", Notes: notes(69, 72, 76)})
	stub := New(refs, logger.NewNopLogger(), WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }))
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return srv, transport.New(transport.DefaultConfig(srv.URL), logger.NewNopLogger())
}

func TestServerGradesNotes(t *testing.T) {
	_, client := newStub(t)
	ctx := context.Background()

	raw, err := client.FetchSchema(ctx)
	require.NoError(t, err)
	schema, err := codec.ParseSchema(raw)
	require.NoError(t, err)

	body, err := codec.EncodeSession(notes(69, 71, 76), nil, 0)
	require.NoError(t, err)
	out, err := client.SubmitNotes(ctx, contracts.RequestMeta{ScoreID: "etude", ReferenceID: "etude.mid", Page: 2}, body)
	require.NoError(t, err)

	rec, err := codec.DecodeRecordingWith(schema, out)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), rec.CreatedAt)
	assert.Equal(t, 2, rec.PlayedNotes.Page)
	assert.Len(t, rec.PlayedNotes.Notes, 3)
	require.Len(t, rec.ComputedEdits.Edits, 1)
	e := rec.ComputedEdits.Edits[0]
	assert.Equal(t, contracts.OpSubstitute, e.Operation)
	assert.Equal(t, 1, e.Pos)
	assert.Equal(t, 72, e.SChar.Pitch)
	assert.Equal(t, 71, e.TChar.Pitch)
}

func TestServerErrors(t *testing.T) {
	srv, client := newStub(t)
	ctx := context.Background()

	_, err := client.SubmitNotes(ctx, contracts.RequestMeta{ScoreID: "missing"}, nil)
	var se *transport.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)

	_, err = client.SubmitNotes(ctx, contracts.RequestMeta{ScoreID: "etude"}, []byte{0xff})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)

	resp, err := http.Post(srv.URL+"/notes", transport.ContentTypeNotes, strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(transport.HeaderRequestID))
}

func TestServerCORSPreflight(t *testing.T) {
	srv, _ := newStub(t)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/notes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://score.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", transport.HeaderScoreID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func tone(rate int, freq, seconds float64) []int16 {
	n := int(float64(rate) * seconds)
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(0.5 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestServerTranscribesAudio(t *testing.T) {
	_, client := newStub(t)
	const rate = 8000
	var samples []int16
	samples = append(samples, tone(rate, 440, 0.3)...)
	samples = append(samples, make([]int16, rate/10)...)
	samples = append(samples, tone(rate, 523.25, 0.3)...)
	samples = append(samples, make([]int16, rate/10)...)
	samples = append(samples, tone(rate, 659.26, 0.3)...)

	blob, err := audio.EncodeWAV(samples, rate)
	require.NoError(t, err)
	out, err := client.SubmitAudio(context.Background(), contracts.RequestMeta{ScoreID: "etude"}, blob)
	require.NoError(t, err)

	rec, err := codec.DecodeRecordingWith(codec.DefaultSchema(), out)
	require.NoError(t, err)
	require.Len(t, rec.PlayedNotes.Notes, 3)
	for i, want := range []int{69, 72, 76} {
		assert.Equal(t, want, rec.PlayedNotes.Notes[i].Pitch)
	}
	assert.InDelta(t, 0.4, rec.PlayedNotes.Notes[1].StartTime, 1e-9)
	assert.Empty(t, rec.ComputedEdits.Edits)
}
