package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yashvanth/taskflow/internal/model"
)

// reconnectDelay は消費ループの再接続待機時間。
const reconnectDelay = 5 * time.Second

// Handler はタスク通知1件を処理する関数。
// エラーを返すとメッセージは再配送される。
type Handler func(ctx context.Context, n model.TaskNotification) error

// ConsumeRecorder は通知消費のメトリクス記録インターフェース。
type ConsumeRecorder interface {
	RecordNotificationConsumed(success bool)
}

// Consumer はRabbitMQからタスク通知を消費するワーカー。
// 接続断からは一定間隔で自動的に再接続する。
type Consumer struct {
	url     string
	handler Handler
	metrics ConsumeRecorder
	logger  *slog.Logger
}

// NewConsumer はConsumerを生成する。metricsはnilを許容する。
func NewConsumer(url string, handler Handler, metrics ConsumeRecorder, logger *slog.Logger) *Consumer {
	return &Consumer{
		url:     url,
		handler: handler,
		metrics: metrics,
		logger:  logger,
	}
}

// Run はコンテキストがキャンセルされるまで消費ループを実行する。
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("notification consumer started")

	for {
		if err := c.consume(ctx); err != nil {
			c.logger.Warn("consumer connection lost, reconnecting",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("notification consumer stopped")
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consume は1つの接続上でメッセージを消費し続ける。
// 接続断または配送チャネルのクローズでエラーを返す。
func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return err
	}

	deliveries, err := channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("consuming task notifications", slog.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery は1メッセージを処理してack/nackする。
// デコード不能なメッセージは再配送せずに破棄する。
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var n model.TaskNotification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.logger.Warn("discarding malformed notification",
			slog.String("error", err.Error()),
		)
		d.Nack(false, false)
		c.record(false)
		return
	}

	if err := c.handler(ctx, n); err != nil {
		c.logger.Error("notification handling failed, requeueing",
			slog.String("task_id", n.TaskID),
			slog.String("error", err.Error()),
		)
		d.Nack(false, true)
		c.record(false)
		return
	}

	d.Ack(false)
	c.record(true)
}

func (c *Consumer) record(success bool) {
	if c.metrics != nil {
		c.metrics.RecordNotificationConsumed(success)
	}
}

// LogHandler は通知をログ出力するだけのハンドラーを返す。
// Notifierサービスのデフォルト動作であり、メール等の配信はここを差し替える。
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, n model.TaskNotification) error {
		logger.Info("task notification received",
			slog.String("task_id", n.TaskID),
			slog.String("user_id", n.UserID),
			slog.String("title", n.Title),
			slog.String("status", string(n.Status)),
		)
		return nil
	}
}
