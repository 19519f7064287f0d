// Package mq 基于RabbitMQ的目录变更事件
//
// 网关在转发的变更请求成功后发布ChangeEvent，其它客户端订阅后
// 按事件中的标签让本地缓存失效：
//
//	gateway ──catalog.book.updated──▶ [catalog.events] ──▶ catalogctl watch
//
// Exchange使用topic类型，routing key格式为 catalog.<类型>.<操作>，
// 订阅方可以用 catalog.# 或 catalog.book.* 过滤。
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChangeEvent 目录变更事件
type ChangeEvent struct {
	Operation string    `json:"operation"` // createBook/updateBook/deleteBook/borrowBook
	Tags      []string  `json:"tags"`      // 失效标签，如 "Book"、"Book:42"
	Status    int       `json:"status"`    // 上游响应状态码
	At        time.Time `json:"at"`
}

// RoutingKey 事件路由键：catalog.<类型>.<操作>
//
// 类型取第一个标签的类型部分，操作取Operation去掉实体名后的动词。
func (e ChangeEvent) RoutingKey() string {
	entity := "unknown"
	if len(e.Tags) > 0 {
		entity, _, _ = strings.Cut(e.Tags[0], ":")
	}

	op := e.Operation
	for i, r := range op {
		if r >= 'A' && r <= 'Z' {
			op = op[:i]
			break
		}
	}
	verbs := map[string]string{"create": "created", "update": "updated", "delete": "deleted", "borrow": "borrowed"}
	if v, ok := verbs[op]; ok {
		op = v
	}

	return fmt.Sprintf("catalog.%s.%s", strings.ToLower(entity), op)
}

// EventPublisher 发布变更事件
type EventPublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Close() error
}

// amqpChannel Publisher用到的Channel方法
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher RabbitMQ事件发布者
type Publisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *slog.Logger
}

// NewPublisher 连接RabbitMQ并声明topic Exchange
func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建Channel失败: %w", err)
	}

	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("✅ 事件发布者已创建", "exchange", exchange)
	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	// Durable=true, AutoDelete=false, Internal=false, NoWait=false
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("声明Exchange失败: %w", err)
	}
	return nil
}

// Publish 发布事件（JSON，持久化消息）
func (p *Publisher) Publish(ctx context.Context, event ChangeEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("事件序列化失败: %w", err)
	}

	key := event.RoutingKey()
	err = p.channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.At,
	})
	if err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}

	p.logger.DebugContext(ctx, "📤 事件已发布", "routing_key", key, "tags", event.Tags)
	return nil
}

// Close 关闭Channel和连接
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

// Handler 事件处理函数，返回错误时消息重新入队
type Handler func(ctx context.Context, event ChangeEvent) error

// Consumer RabbitMQ事件消费者
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

// NewConsumer 声明队列并绑定路由键
//
// queue为空时创建独占的临时队列（每个watch进程一个，进程退出后自动删除）。
func NewConsumer(url, exchange, queue string, routingKeys []string, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建Channel失败: %w", err)
	}

	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	if err := declareExchange(ch, exchange); err != nil {
		closeAll()
		return nil, err
	}

	durable, autoDelete, exclusive := true, false, false
	if queue == "" {
		durable, autoDelete, exclusive = false, true, true
	}
	q, err := ch.QueueDeclare(queue, durable, autoDelete, exclusive, false, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("声明Queue失败: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("绑定Queue失败: %w", err)
		}
	}

	logger.Info("✅ 事件消费者已创建", "queue", q.Name, "routing_keys", routingKeys)
	return &Consumer{conn: conn, channel: ch, queue: q.Name, logger: logger}, nil
}

// Consume 消费事件直到ctx取消
//
// 手动确认：handler成功Ack，失败Nack并重新入队；无法解析的消息直接丢弃。
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("设置Qos失败: %w", err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("开始消费失败: %w", err)
	}

	c.logger.Info("📥 开始消费事件", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("🛑 消费者退出", "queue", c.queue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("消息Channel已关闭")
			}
			dispatch(ctx, c.logger, msg, handler)
		}
	}
}

func dispatch(ctx context.Context, logger *slog.Logger, msg amqp.Delivery, handler Handler) {
	var event ChangeEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.Warn("❌ 无法解析事件，丢弃", "routing_key", msg.RoutingKey, "error", err)
		_ = msg.Reject(false)
		return
	}

	if err := handler(ctx, event); err != nil {
		logger.Warn("❌ 事件处理失败，重新入队", "routing_key", msg.RoutingKey, "error", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// Close 关闭Channel和连接
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}
