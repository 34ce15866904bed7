// Package publish 将导出的 fCO2 行推送到 Kafka
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/core/ports"
)

// DefaultBatchSize 单次 WriteMessages 的消息数上限
const DefaultBatchSize = 500

// MessageWriter kafka.Writer 的最小子集, 测试中可替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message 单行 fCO2 结果的消息体
type Message struct {
	RunID  string        `json:"run_id"`
	Record domain.Record `json:"record"`
}

// KafkaPublisher ports.Publisher 的 Kafka 实现
// 消息以行时间戳 (RFC3339) 为 key, 同一时刻的重复发布落在同一分区
type KafkaPublisher struct {
	writer    MessageWriter
	batchSize int
	logger    logrus.FieldLogger
}

var _ ports.Publisher = (*KafkaPublisher)(nil)

// PublisherOption 定义配置选项函数
type PublisherOption func(*KafkaPublisher)

// WithBatchSize 设置单次写入的消息数
func WithBatchSize(n int) PublisherOption {
	return func(p *KafkaPublisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithPublisherLogger 设置日志
func WithPublisherLogger(l logrus.FieldLogger) PublisherOption {
	return func(p *KafkaPublisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewWriter 创建同步写入的 kafka.Writer
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

// NewKafkaPublisher 基于任意 MessageWriter 创建发布器
func NewKafkaPublisher(w MessageWriter, opts ...PublisherOption) *KafkaPublisher {
	p := &KafkaPublisher{
		writer:    w,
		batchSize: DefaultBatchSize,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish 分批写出消息; 任一批失败即返回错误
func (p *KafkaPublisher) Publish(ctx context.Context, runID string, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(Message{RunID: runID, Record: rec})
		if err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.Timestamp.UTC().Format(time.RFC3339)),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
			},
		})
	}

	for start := 0; start < len(msgs); start += p.batchSize {
		end := min(start+p.batchSize, len(msgs))
		if err := p.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("write messages [%d, %d): %w", start, end, err)
		}
	}
	p.logger.WithFields(logrus.Fields{"run_id": runID, "messages": len(msgs)}).Info("fCO2 rows published")
	return nil
}

// Close 关闭底层 writer
func (p *KafkaPublisher) Close() error { return p.writer.Close() }
