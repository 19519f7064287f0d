package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

type fakeAck struct {
	acked, nacked, rejected bool
	requeue                 bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}
func (a *fakeAck) Reject(_ uint64, requeue bool) error {
	a.rejected, a.requeue = true, requeue
	return nil
}

// TestChangeEvent_RoutingKey 测试路由键
func TestChangeEvent_RoutingKey(t *testing.T) {
	tests := []struct {
		name  string
		event ChangeEvent
		want  string
	}{
		{"创建图书", ChangeEvent{Operation: "createBook", Tags: []string{"Book"}}, "catalog.book.created"},
		{"更新图书", ChangeEvent{Operation: "updateBook", Tags: []string{"Book:42", "Book"}}, "catalog.book.updated"},
		{"删除图书", ChangeEvent{Operation: "deleteBook", Tags: []string{"Book"}}, "catalog.book.deleted"},
		{"借阅", ChangeEvent{Operation: "borrowBook", Tags: []string{"Borrow", "Book"}}, "catalog.borrow.borrowed"},
		{"没有标签", ChangeEvent{Operation: "custom"}, "catalog.unknown.custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.RoutingKey())
		})
	}
}

// TestPublisher_Publish 测试发布事件
func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "catalog.events", logger: discard}

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), ChangeEvent{Operation: "updateBook", Tags: []string{"Book:42", "Book"}, Status: 200, At: at})
	require.NoError(t, err)

	assert.Equal(t, "catalog.events", ch.exchange)
	assert.Equal(t, "catalog.book.updated", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded ChangeEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, []string{"Book:42", "Book"}, decoded.Tags)
	assert.True(t, at.Equal(decoded.At))

	t.Run("发布失败返回错误", func(t *testing.T) {
		ch.err = errors.New("channel closed")
		err := p.Publish(context.Background(), ChangeEvent{Operation: "createBook", Tags: []string{"Book"}})
		assert.ErrorContains(t, err, "channel closed")
	})
}

// TestDispatch 测试消息确认
func TestDispatch(t *testing.T) {
	body, _ := json.Marshal(ChangeEvent{Operation: "createBook", Tags: []string{"Book"}})

	t.Run("处理成功Ack", func(t *testing.T) {
		ack := &fakeAck{}
		var got ChangeEvent
		dispatch(context.Background(), discard, amqp.Delivery{Acknowledger: ack, Body: body}, func(_ context.Context, e ChangeEvent) error {
			got = e
			return nil
		})
		assert.True(t, ack.acked)
		assert.Equal(t, []string{"Book"}, got.Tags)
	})

	t.Run("处理失败重新入队", func(t *testing.T) {
		ack := &fakeAck{}
		dispatch(context.Background(), discard, amqp.Delivery{Acknowledger: ack, Body: body}, func(context.Context, ChangeEvent) error {
			return errors.New("busy")
		})
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeue)
	})

	t.Run("无法解析直接丢弃", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		dispatch(context.Background(), discard, amqp.Delivery{Acknowledger: ack, Body: []byte("{")}, func(context.Context, ChangeEvent) error {
			called = true
			return nil
		})
		assert.True(t, ack.rejected)
		assert.False(t, ack.requeue)
		assert.False(t, called)
	})
}
