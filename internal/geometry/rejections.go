package geometry

import (
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// DefaultMaxReported is how many rejected edits a render pass logs individually.
const DefaultMaxReported = 5

// Rejections counts edits dropped during one render pass and logs at most limit of them.
type Rejections struct {
	logger contracts.Logger
	limit  int
	count  int
}

// NewRejections starts a pass. A non-positive limit uses DefaultMaxReported.
func NewRejections(logger contracts.Logger, limit int) *Rejections {
	if limit <= 0 {
		limit = DefaultMaxReported
	}
	return &Rejections{logger: logger, limit: limit}
}

// Reject records e as unresolvable.
func (r *Rejections) Reject(e contracts.Edit, err error) {
	r.count++
	if r.count > r.limit {
		return
	}
	r.logger.Warn("Skipping unresolvable edit",
		r.logger.Field().String("operation", string(e.Operation)),
		r.logger.Field().Int("pos", e.Pos),
		r.logger.Field().Int("tPos", e.TPos),
		r.logger.Field().Error("error", err))
}

// Count is the number of rejected edits so far.
func (r *Rejections) Count() int {
	return r.count
}

// Close logs a summary for rejections beyond the limit.
func (r *Rejections) Close() {
	if r.count > r.limit {
		r.logger.Warn("Further unresolvable edits not logged",
			r.logger.Field().Int("suppressed", r.count-r.limit),
			r.logger.Field().Int("total", r.count))
	}
}
