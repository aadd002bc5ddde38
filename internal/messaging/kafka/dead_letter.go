package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// DeadLetterTopicPublisher отправляет события, исчерпавшие попытки
// публикации, в dead letter queue. Исходный topic, число попыток и
// причина сбоя передаются record-заголовками, чтобы reprocessing мог
// вернуть событие на место без разбора payload.
type DeadLetterTopicPublisher struct {
	producer    *Producer
	topic       string
	sourceTopic string
}

// NewDeadLetterPublisher создаёт Kafka-паблишер dead letter queue.
// sourceTopic — topic, в который событие не удалось опубликовать.
func NewDeadLetterPublisher(producer *Producer, topic, sourceTopic string) domain.DeadLetterPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	if sourceTopic == "" {
		sourceTopic = TopicOrderEvents
	}
	return &DeadLetterTopicPublisher{
		producer:    producer,
		topic:       topic,
		sourceTopic: sourceTopic,
	}
}

// Publish заворачивает событие в DLQ-envelope и отправляет его
// с retry-заголовками.
func (p *DeadLetterTopicPublisher) Publish(dead domain.DeadLetter) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dead letter publisher is not initialized")
	}

	failedAt := dead.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now().UTC()
	}

	event := dead.Event
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishError  string          `json:"publish_error"`
		FailedAt      time.Time       `json:"failed_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishError:  dead.Reason,
		FailedAt:      failedAt,
	}

	headers := []sarama.RecordHeader{
		{Key: []byte(HeaderRetryCount), Value: []byte(strconv.Itoa(dead.Attempts))},
		{Key: []byte(HeaderOriginalTopic), Value: []byte(p.sourceTopic)},
		{Key: []byte(HeaderErrorMessage), Value: []byte(dead.Reason)},
		{Key: []byte(HeaderFailedAt), Value: []byte(failedAt.Format(time.RFC3339Nano))},
	}

	return p.producer.PublishEventWithHeaders(p.topic, key, envelope, headers)
}

var _ domain.DeadLetterPublisher = (*DeadLetterTopicPublisher)(nil)
