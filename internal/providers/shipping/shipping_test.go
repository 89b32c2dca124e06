package shipping

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
)

type capture struct{ sent []messages.Message }

func (c *capture) Publish(_ context.Context, m messages.Message) error {
	c.sent = append(c.sent, m)
	return nil
}

func TestShip_StableTrackingPerOrder(t *testing.T) {
	pub := &capture{}
	svc := NewService(pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	require.NoError(t, svc.Ship(ctx, messages.ProcessShippingCommand{OrderID: "o-1"}))
	require.NoError(t, svc.Ship(ctx, messages.ProcessShippingCommand{OrderID: "o-1"}))
	require.NoError(t, svc.Ship(ctx, messages.ProcessShippingCommand{OrderID: "o-2"}))

	require.Len(t, pub.sent, 3)
	a := pub.sent[0].(messages.ShippingResult)
	b := pub.sent[1].(messages.ShippingResult)
	c := pub.sent[2].(messages.ShippingResult)

	assert.Regexp(t, `^TRK-[0-9A-F]{8}$`, a.TrackingNumber)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.TrackingNumber, c.TrackingNumber)
}
