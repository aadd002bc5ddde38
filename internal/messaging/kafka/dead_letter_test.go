package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestDeadLetterPublisher_Publish(t *testing.T) {
	producer, mock := newMockProducer(t)
	defer producer.Close()

	var sent *sarama.ProducerMessage
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		sent = msg
		return nil
	})

	publisher := NewDeadLetterPublisher(producer, "", "")

	failedAt := time.Now().UTC()
	err := publisher.Publish(domain.DeadLetter{
		Event: domain.OutboxMessage{
			ID:            "msg-1",
			AggregateType: "order",
			AggregateID:   "order-1",
			EventType:     string(EventTypeOrderCreated),
			Payload:       []byte(`{"order_id":"order-1"}`),
		},
		Attempts: 3,
		Reason:   "broker unavailable",
		FailedAt: failedAt,
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if sent.Topic != TopicDeadLetterQueue {
		t.Errorf("topic = %s, want %s", sent.Topic, TopicDeadLetterQueue)
	}

	headers := make(map[string]string, len(sent.Headers))
	for _, h := range sent.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	if headers[HeaderRetryCount] != "3" {
		t.Errorf("%s = %q, want 3", HeaderRetryCount, headers[HeaderRetryCount])
	}
	if headers[HeaderOriginalTopic] != TopicOrderEvents {
		t.Errorf("%s = %q, want %s", HeaderOriginalTopic, headers[HeaderOriginalTopic], TopicOrderEvents)
	}
	if headers[HeaderErrorMessage] != "broker unavailable" {
		t.Errorf("%s = %q, want broker unavailable", HeaderErrorMessage, headers[HeaderErrorMessage])
	}
	if headers[HeaderFailedAt] != failedAt.Format(time.RFC3339Nano) {
		t.Errorf("%s = %q, want %s", HeaderFailedAt, headers[HeaderFailedAt], failedAt.Format(time.RFC3339Nano))
	}

	value, err := sent.Value.Encode()
	if err != nil {
		t.Fatalf("encode value: %v", err)
	}
	var envelope struct {
		ID           string          `json:"id"`
		EventType    string          `json:"event_type"`
		Payload      json.RawMessage `json:"payload"`
		PublishError string          `json:"publish_error"`
	}
	if err := json.Unmarshal(value, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.ID != "msg-1" {
		t.Errorf("envelope.ID = %s, want msg-1", envelope.ID)
	}
	if envelope.PublishError != "broker unavailable" {
		t.Errorf("envelope.PublishError = %q", envelope.PublishError)
	}
	if string(envelope.Payload) != `{"order_id":"order-1"}` {
		t.Errorf("envelope.Payload = %s", envelope.Payload)
	}
}

func TestDeadLetterPublisher_NotInitialized(t *testing.T) {
	publisher := NewDeadLetterPublisher(nil, "", "")

	if err := publisher.Publish(domain.DeadLetter{}); err == nil {
		t.Fatal("expected error from uninitialized publisher, got nil")
	}
}
