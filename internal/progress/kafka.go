package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/sells-group/pricing-cli/internal/model"
)

// messageWriter is the subset of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaEnvelope is the record value; the key is the connection id.
type kafkaEnvelope struct {
	ConnectionID string              `json:"connectionId"`
	Event        model.ProgressEvent `json:"event"`
	SentAt       time.Time           `json:"sentAt"`
}

// KafkaNotifier publishes events to a topic for out-of-process relays.
type KafkaNotifier struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaNotifier writes to topic on brokers. Records for one connection
// share a key and so land on one partition in order.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, eris.New("progress: kafka notifier requires brokers and topic")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(w), nil
}

func newKafkaNotifier(w messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w, now: time.Now}
}

// Notify implements Notifier.
func (k *KafkaNotifier) Notify(ctx context.Context, connectionID string, ev model.ProgressEvent) error {
	value, err := json.Marshal(kafkaEnvelope{ConnectionID: connectionID, Event: ev, SentAt: k.now().UTC()})
	if err != nil {
		return eris.Wrap(err, "progress: encode kafka record")
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(connectionID),
		Value: value,
	})
	if err != nil {
		return eris.Wrap(err, "progress: kafka write")
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
