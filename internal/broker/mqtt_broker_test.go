package broker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMQTTBroker(t *testing.T) *MQTTBroker {
	t.Helper()
	b, err := NewMQTTBroker(context.Background(), &MQTTBrokerConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, "mqtt-node", TopicFilter{SystemPrefix: "$SYS"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestMQTTBroker_PublishSubscribe(t *testing.T) {
	b := newTestMQTTBroker(t)
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, "home/lights")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "home/lights", []byte("on"), false))

	msg := receive(t, ch)
	assert.Equal(t, "home/lights", msg.Topic)
	assert.Equal(t, []byte("on"), msg.Payload)
}

func TestMQTTBroker_ExactTopicOnly(t *testing.T) {
	b := newTestMQTTBroker(t)
	ctx := context.Background()

	ch, err := b.Subscribe(ctx, "home/#")
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, "home/lights", []byte("on"), false))

	select {
	case msg := <-ch:
		t.Fatalf("wildcard expanded at gateway: %s", msg.Topic)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMQTTBroker_Retained(t *testing.T) {
	b := newTestMQTTBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "status/gw", []byte("up"), true))

	var msg *Message
	require.Eventually(t, func() bool {
		var err error
		msg, err = b.Retained(ctx, "status/gw")
		return err == nil && msg != nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte("up"), msg.Payload)
	assert.True(t, msg.Retained)

	none, err := b.Retained(ctx, "status/none")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestMQTTBroker_Close(t *testing.T) {
	b, err := NewMQTTBroker(context.Background(), &MQTTBrokerConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, "n", TopicFilter{})
	require.NoError(t, err)

	ch, err := b.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, b.Publish(context.Background(), "t", []byte("x"), false), ErrBrokerClosed)
}
