package overlay

import (
	"github.com/leandrodaf/perfdiff/internal/signals"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// Bind subscribes the renderer to the display signals and returns a function that removes every subscription.
func (r *Renderer) Bind(bus *signals.Bus) (unbind func()) {
	subs := []func(){
		signals.Subscribe(bus, func(s contracts.PageInfo) { r.SetTotalPages(s.Total) }),
		signals.Subscribe(bus, func(s contracts.PageChange) { r.SetPage(s.Page) }),
		signals.Subscribe(bus, func(s contracts.ZoomChange) { r.SetZoom(s.Scale) }),
		signals.Subscribe(bus, func(contracts.RedrawAnnotations) { r.Request() }),
		signals.Subscribe(bus, func(s contracts.ResultReady) { r.SetResult(s.Result) }),
	}
	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}
