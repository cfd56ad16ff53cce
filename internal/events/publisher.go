// Package events publishes assignment lifecycle transitions to Kafka/Redpanda
// for downstream collection-performance analytics to consume. Delivery is
// at-least-once; consumers are expected to dedupe on (assignment_id, status).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/surveypulse/dialer-core/internal/domain"
)

// wireEvent is the JSON payload published for each assignment transition.
// EventID is a fresh identifier per publish attempt, distinct from the
// ULID-based assignment/request IDs used elsewhere, so a consumer that
// retries a redelivered batch can dedupe on it independent of the
// (assignment_id, status) pair the envelope also carries.
type wireEvent struct {
	EventID       string                  `json:"event_id"`
	AssignmentID  string                  `json:"assignment_id"`
	ProjectID     string                  `json:"project_id"`
	CellID        string                  `json:"cell_id"`
	InterviewerID string                  `json:"interviewer_id"`
	Status        domain.AssignmentStatus `json:"status"`
	At            string                  `json:"at"`
}

// KafkaPublisher implements domain.EventPublisher via franz-go. A Publisher
// constructed with no seed brokers is a tolerant no-op: Publish logs a
// warning and returns immediately, so a dev environment without Kafka never
// blocks an assignment lifecycle transition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher constructs a publisher for topic. If brokers is empty,
// the returned Publisher drops every event after logging a warning.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		slog.Warn("events: no kafka brokers configured, lifecycle events will be dropped")
		return &KafkaPublisher{topic: topic}, nil
	}

	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	kotelService := kotel.NewKotel(kotel.WithTracer(tracer))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.ProducerBatchMaxBytes(1_000_000),
		kgo.WithHooks(kotelService.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=events.new_kafka_publisher: %w", err)
	}

	if err := ensureTopic(client, topic); err != nil {
		client.Close()
		return nil, fmt.Errorf("op=events.new_kafka_publisher: %w", err)
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

// topicAlreadyExistsErrCode is Kafka's protocol error code 36
// (TOPIC_ALREADY_EXISTS), returned when two dialerd instances race to
// create the lifecycle-events topic on startup.
const topicAlreadyExistsErrCode = 36

// ensureTopic creates the lifecycle-events topic with three partitions
// and a one-day retention if it doesn't already exist. Idempotent: a
// concurrent create from another instance is treated as success.
func ensureTopic(client *kgo.Client, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 10000

	t := kmsg.NewCreateTopicsRequestTopic()
	t.Topic = topic
	t.NumPartitions = 3
	t.ReplicationFactor = -1
	retentionVal := "86400000"
	cfg := kmsg.NewCreateTopicsRequestTopicConfig()
	cfg.Name = "retention.ms"
	cfg.Value = &retentionVal
	t.Configs = append(t.Configs, cfg)
	req.Topics = append(req.Topics, t)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("create topic request: %w", err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("unexpected response type: %T", resp)
	}
	for _, rt := range createResp.Topics {
		if rt.ErrorCode == 0 || rt.ErrorCode == topicAlreadyExistsErrCode {
			continue
		}
		return fmt.Errorf("create topic %s: code %d", rt.Topic, rt.ErrorCode)
	}
	return nil
}

// Publish enqueues one lifecycle event. Per domain.EventPublisher's
// contract, delivery is best-effort: any marshal or broker error is
// logged, never returned, so a publish failure can't fail the caller's
// transition.
func (p *KafkaPublisher) Publish(ctx domain.Context, evt domain.LifecycleEvent) {
	if p.client == nil {
		slog.Warn("events: dropping lifecycle event, publisher disabled",
			slog.String("assignment_id", evt.AssignmentID), slog.String("status", string(evt.Status)))
		return
	}

	b, err := json.Marshal(wireEvent{
		EventID:       uuid.New().String(),
		AssignmentID:  evt.AssignmentID,
		ProjectID:     evt.ProjectID,
		CellID:        evt.CellID,
		InterviewerID: evt.InterviewerID,
		Status:        evt.Status,
		At:            evt.At.Format(timeLayout),
	})
	if err != nil {
		slog.Error("events: marshal failed", slog.String("assignment_id", evt.AssignmentID), slog.Any("error", err))
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(evt.AssignmentID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "status", Value: []byte(evt.Status)},
			{Key: "project_id", Value: []byte(evt.ProjectID)},
		},
	}

	result := p.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		slog.Error("events: publish failed", slog.String("assignment_id", evt.AssignmentID), slog.Any("error", err))
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Close releases the underlying Kafka client, if any.
func (p *KafkaPublisher) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
