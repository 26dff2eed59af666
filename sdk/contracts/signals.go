package contracts

// Topic names a signal channel on the bus.
type Topic string

const (
	TopicPageInfo          Topic = "pageInfo"
	TopicPageChange        Topic = "pageChange"
	TopicZoomChange        Topic = "zoomChange"
	TopicRedrawAnnotations Topic = "redrawAnnotations"
	TopicShowComparison    Topic = "showComparison"
	TopicResultReady       Topic = "resultReady"
)

// Signal is any message carried by the bus.
type Signal interface {
	Topic() Topic
}

// PageInfo is published by the renderer with the total page count.
type PageInfo struct {
	Total int
}

// PageChange carries the currently displayed page index.
type PageChange struct {
	Page int
}

// ZoomChange carries the renderer's current scale factor.
type ZoomChange struct {
	Scale float64
}

// RedrawAnnotations forces an overlay repaint.
type RedrawAnnotations struct{}

// ShowComparison is emitted when an overlay marker is clicked.
type ShowComparison struct {
	Operation Operation
	Pos       int
	TPos      int
	Reference *NoteRef
	Performed *NoteRef
}

// ResultReady hands a new ScoringResult to the display side.
type ResultReady struct {
	Result *ScoringResult
	Origin string // "capture" or "manual".
}

func (PageInfo) Topic() Topic          { return TopicPageInfo }
func (PageChange) Topic() Topic        { return TopicPageChange }
func (ZoomChange) Topic() Topic        { return TopicZoomChange }
func (RedrawAnnotations) Topic() Topic { return TopicRedrawAnnotations }
func (ShowComparison) Topic() Topic    { return TopicShowComparison }
func (ResultReady) Topic() Topic       { return TopicResultReady }
