package signals

import (
	"testing"

	"github.com/leandrodaf/perfdiff/internal/logger"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
	"github.com/stretchr/testify/assert"
)

func TestSubscribersReceiveOnlyTheirTopic(t *testing.T) {
	b := New(logger.NewNopLogger())

	var pages []int
	var zooms []float64
	Subscribe(b, func(s contracts.PageChange) { pages = append(pages, s.Page) })
	Subscribe(b, func(s contracts.ZoomChange) { zooms = append(zooms, s.Scale) })

	b.Publish(contracts.PageChange{Page: 2})
	b.Publish(contracts.ZoomChange{Scale: 1.5})
	b.Publish(contracts.PageChange{Page: 3})
	b.Publish(contracts.RedrawAnnotations{})

	assert.Equal(t, []int{2, 3}, pages)
	assert.Equal(t, []float64{1.5}, zooms)
}

func TestDeliveryOrderAndUnsubscribe(t *testing.T) {
	b := New(logger.NewNopLogger())

	var order []string
	unsubA := Subscribe(b, func(contracts.RedrawAnnotations) { order = append(order, "a") })
	Subscribe(b, func(contracts.RedrawAnnotations) { order = append(order, "b") })
	assert.Equal(t, 2, b.Subscribers(contracts.TopicRedrawAnnotations))

	b.Publish(contracts.RedrawAnnotations{})
	unsubA()
	unsubA()
	b.Publish(contracts.RedrawAnnotations{})

	assert.Equal(t, []string{"a", "b", "b"}, order)
	assert.Equal(t, 1, b.Subscribers(contracts.TopicRedrawAnnotations))
}

func TestHandlerMayUnsubscribeDuringDispatch(t *testing.T) {
	b := New(logger.NewNopLogger())

	calls := 0
	var unsub func()
	unsub = Subscribe(b, func(contracts.ShowComparison) {
		calls++
		unsub()
	})

	b.Publish(contracts.ShowComparison{Operation: contracts.OpDelete})
	b.Publish(contracts.ShowComparison{Operation: contracts.OpDelete})
	assert.Equal(t, 1, calls)
}
