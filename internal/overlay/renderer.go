// Package overlay paints color-coded edit markers over the score and keeps them in step with page, zoom and threshold.
package overlay

import (
	"errors"
	"image/color"
	"sync"

	"github.com/leandrodaf/perfdiff/internal/geometry"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Mode selects how edits are placed.
type Mode string

const (
	// ImageMode places edits by bounding box on an image-paginated page.
	ImageMode Mode = "image"
	// VectorMode places edits on rendered notation glyphs.
	VectorMode Mode = "vector"
)

// Marker colors per operation.
var (
	ColorInsert     = color.NRGBA{R: 0x2e, G: 0xa0, B: 0x43, A: 0x99}
	ColorDelete     = color.NRGBA{R: 0xd7, G: 0x3a, B: 0x49, A: 0x99}
	ColorSubstitute = color.NRGBA{R: 0xf5, G: 0x8c, B: 0x00, A: 0x99}
	ColorUnknown    = color.NRGBA{R: 0x8c, G: 0x8c, B: 0x8c, A: 0x99}
)

// ColorFor returns the marker color of op.
func ColorFor(op contracts.Operation) color.NRGBA {
	switch op {
	case contracts.OpInsert:
		return ColorInsert
	case contracts.OpDelete:
		return ColorDelete
	case contracts.OpSubstitute:
		return ColorSubstitute
	default:
		return ColorUnknown
	}
}

// Annotation is one drawn overlay element: an edit and where it sits.
type Annotation struct {
	Edit      contracts.Edit
	Color     color.NRGBA
	Placement geometry.Placement
}

// HitTest reports whether p falls on either marker of a.
func (a Annotation) HitTest(p geometry.Point) bool {
	if a.Placement.Primary.Contains(p) {
		return true
	}
	return a.Placement.Secondary != nil && a.Placement.Secondary.Contains(p)
}

// Surface receives the elements of a render pass. Clear removes everything the previous pass added.
type Surface interface {
	Clear()
	Add(a Annotation)
	Len() int
}

// Config configures a Renderer.
type Config struct {
	Mode           Mode
	Container      geometry.Size
	MarkerSize     float64
	PitchTolerance int
	MaxReported    int
	Threshold      int
}

// Renderer owns the overlay of one score. Render triggers are coalesced: Request marks a pass as due
// and Flush runs it once, however many requests arrived in between.
type Renderer struct {
	logger    contracts.Logger
	publisher Publisher
	surface   Surface
	schedule  func()

	mu          sync.Mutex
	mode        Mode
	image       geometry.ImageResolver
	vector      geometry.VectorResolver
	maxReported int
	result      *contracts.ScoringResult
	pages       []geometry.Size
	viewport    geometry.Viewport
	totalPages  int
	glyphs      []geometry.Glyph
	origin      geometry.Point
	threshold   int
	enabled     bool
	requested   bool
	annotations []Annotation
	passes      int
}

// Publisher receives ShowComparison signals.
type Publisher interface {
	Publish(sig contracts.Signal)
}

// NewRenderer creates an enabled renderer. schedule, when set, is called whenever a pass becomes due.
func NewRenderer(cfg Config, surface Surface, publisher Publisher, logger contracts.Logger, schedule func()) *Renderer {
	if cfg.Mode == "" {
		cfg.Mode = ImageMode
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = contracts.DefaultPreferences().ConfidenceThreshold
	}
	return &Renderer{
		logger:      logger,
		publisher:   publisher,
		surface:     surface,
		schedule:    schedule,
		mode:        cfg.Mode,
		vector:      geometry.VectorResolver{PitchTolerance: cfg.PitchTolerance, MarkerSize: cfg.MarkerSize},
		maxReported: cfg.MaxReported,
		viewport:    geometry.Viewport{Container: cfg.Container, Zoom: 1},
		threshold:   geometry.Clamp(cfg.Threshold, contracts.MinConfidence, contracts.MaxConfidence),
		enabled:     true,
	}
}

// SetResult replaces the displayed result wholesale. nil clears it.
func (r *Renderer) SetResult(result *contracts.ScoringResult) {
	r.mu.Lock()
	r.result = result
	r.pages = nil
	if result != nil {
		pages, err := geometry.PageSizes(result.Size)
		if err != nil {
			r.logger.Warn("Ignoring malformed page size table", r.logger.Field().Error("error", err))
		}
		r.pages = pages
	}
	r.mu.Unlock()
	r.Request()
}

// SetPage changes the visible page.
func (r *Renderer) SetPage(page int) {
	r.mu.Lock()
	changed := r.viewport.Page != page
	r.viewport.Page = page
	r.mu.Unlock()
	if changed {
		r.Request()
	}
}

// SetTotalPages records the renderer's page count; pages beyond it are never shown.
func (r *Renderer) SetTotalPages(total int) {
	r.mu.Lock()
	r.totalPages = total
	r.mu.Unlock()
}

// SetZoom changes the zoom factor. The overlay only reads it.
func (r *Renderer) SetZoom(scale float64) {
	r.mu.Lock()
	changed := r.viewport.Zoom != scale
	r.viewport.Zoom = scale
	r.mu.Unlock()
	if changed {
		r.Request()
	}
}

// SetContainer changes the size of the score container.
func (r *Renderer) SetContainer(size geometry.Size) {
	r.mu.Lock()
	r.viewport.Container = size
	r.mu.Unlock()
	r.Request()
}

// SetThreshold changes the confidence threshold, clamped to 1..5.
func (r *Renderer) SetThreshold(threshold int) {
	r.mu.Lock()
	r.threshold = geometry.Clamp(threshold, contracts.MinConfidence, contracts.MaxConfidence)
	r.mu.Unlock()
	r.Request()
}

// SetEnabled shows or hides every annotation.
func (r *Renderer) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	r.mu.Unlock()
	r.Request()
}

// SetGlyphs replaces the rendered glyph table used in vector mode. origin is the container's absolute position.
func (r *Renderer) SetGlyphs(glyphs []geometry.Glyph, origin geometry.Point) {
	r.mu.Lock()
	r.glyphs = append([]geometry.Glyph(nil), glyphs...)
	r.origin = origin
	r.mu.Unlock()
	r.Request()
}

// Request marks a render pass as due. Only the first request before a flush schedules one.
func (r *Renderer) Request() {
	r.mu.Lock()
	first := !r.requested
	r.requested = true
	r.mu.Unlock()
	if first && r.schedule != nil {
		r.schedule()
	}
}

// Flush runs the pending pass, if any. It reports whether a pass ran.
func (r *Renderer) Flush() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.requested {
		return false
	}
	r.render()
	return true
}

// Render runs a pass immediately.
func (r *Renderer) Render() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.render()
}

// Count is the number of elements drawn by the last pass.
func (r *Renderer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.annotations)
}

// Passes is the number of passes run so far.
func (r *Renderer) Passes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passes
}

// Annotations returns the elements drawn by the last pass.
func (r *Renderer) Annotations() []Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Annotation(nil), r.annotations...)
}

// Click publishes ShowComparison for the topmost annotation under p.
func (r *Renderer) Click(p geometry.Point) bool {
	r.mu.Lock()
	var hit *Annotation
	for i := len(r.annotations) - 1; i >= 0; i-- {
		if r.annotations[i].HitTest(p) {
			hit = &r.annotations[i]
			break
		}
	}
	var sig contracts.ShowComparison
	if hit != nil {
		sig = contracts.ShowComparison{
			Operation: hit.Edit.Operation,
			Pos:       hit.Edit.Pos,
			TPos:      hit.Edit.TPos,
			Reference: hit.Edit.SChar,
			Performed: hit.Edit.TChar,
		}
	}
	r.mu.Unlock()

	if hit == nil {
		return false
	}
	r.publisher.Publish(sig)
	return true
}

// render clears the previous pass and draws the surviving edits. Callers hold mu.
func (r *Renderer) render() {
	r.requested = false
	r.passes++
	r.surface.Clear()
	r.annotations = r.annotations[:0]

	if !r.enabled || r.result == nil {
		return
	}
	if r.mode == ImageMode && r.totalPages > 0 && r.viewport.Page >= r.totalPages {
		r.logger.Debug("Current page is beyond the rendered page count", r.logger.Field().Int("page", r.viewport.Page))
		return
	}

	rejections := geometry.NewRejections(r.logger, r.maxReported)
	defer rejections.Close()

	for _, e := range r.result.FilterByConfidence(r.threshold) {
		p, err := r.place(e)
		if errors.Is(err, geometry.ErrOffPage) {
			continue
		}
		if err != nil {
			rejections.Reject(e, err)
			continue
		}
		a := Annotation{Edit: e, Color: ColorFor(e.Operation), Placement: p}
		r.annotations = append(r.annotations, a)
		r.surface.Add(a)
	}

	if n := r.surface.Len(); n != len(r.annotations) {
		r.logger.Error("Overlay element count out of step with annotations",
			r.logger.Field().Int("elements", n),
			r.logger.Field().Int("annotations", len(r.annotations)))
	}
}

func (r *Renderer) place(e contracts.Edit) (geometry.Placement, error) {
	if r.mode == VectorMode {
		return r.vector.Resolve(e, r.glyphs, r.origin, r.viewport.Zoom)
	}
	return r.image.Resolve(e, r.pages, r.viewport)
}
