package interceptors

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/order-fulfillment/internal/messages"
	"github.com/jcmexdev/order-fulfillment/internal/pkg/interceptors/constants"
)

func TestInjectExtract(t *testing.T) {
	ctx := WithIdempotencyKey(WithRequestID(context.Background(), "req-1"), "key-1")

	headers := map[string]string{}
	Inject(ctx, func(k, v string) { headers[k] = v })
	assert.Equal(t, map[string]string{
		constants.HeaderXRequestId:      "req-1",
		constants.HeaderXIdempotencyKey: "key-1",
	}, headers)

	out := Extract(context.Background(), func(k string) string { return headers[k] })
	assert.Equal(t, "req-1", RequestID(out))
	assert.Equal(t, "key-1", IdempotencyKey(out))
}

func TestInject_SkipsEmptyValues(t *testing.T) {
	called := false
	Inject(context.Background(), func(string, string) { called = true })
	assert.False(t, called)
}

func TestLogging_PassesThroughErrors(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	boom := errors.New("boom")

	h := Logging(log, func(context.Context, messages.Message) error { return boom })
	err := h(WithRequestID(context.Background(), "req-9"), messages.OrderFailed{OrderID: "o-1"})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
	assert.Contains(t, buf.String(), `"order_id":"o-1"`)
}
