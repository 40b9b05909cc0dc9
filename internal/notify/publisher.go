// Package notify はタスク通知のメッセージキュー発行・消費を提供する。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yashvanth/taskflow/internal/model"
)

// queueName はタスク通知キューの名前。
const queueName = "task_notifications"

// PublishRecorder は通知発行のメトリクス記録インターフェース。
type PublishRecorder interface {
	RecordNotificationPublished()
}

// Publisher はRabbitMQへのタスク通知発行を提供する。
// 接続断を検知すると次回発行時に再接続を試みる。
type Publisher struct {
	url     string
	metrics PublishRecorder
	logger  *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewPublisher はPublisherを生成し、初回接続を試みる。
// 初回接続に失敗してもエラーにせず、発行時の再接続に委ねる。
// ブローカーの不在は通知のベストエフォート性により吸収される。
// metricsはnilを許容する。
func NewPublisher(url string, metrics PublishRecorder, logger *slog.Logger) *Publisher {
	p := &Publisher{
		url:     url,
		metrics: metrics,
		logger:  logger,
	}

	if err := p.connect(); err != nil {
		logger.Warn("notification broker connection failed, will retry on publish",
			slog.String("error", err.Error()),
		)
	}

	return p
}

// connect は接続とチャネルを確立し、キューを宣言する。
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return nil
}

// ensureChannel は利用可能なチャネルを返す。必要に応じて再接続する。
func (p *Publisher) ensureChannel() (*amqp.Channel, error) {
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil {
		return p.channel, nil
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p.channel, nil
}

// PublishTaskNotification はタスク通知をキューへ発行する。
func (p *Publisher) PublishTaskNotification(ctx context.Context, n model.TaskNotification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, err := p.ensureChannel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordNotificationPublished()
	}
	return nil
}

// Close は接続を閉じる。
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
