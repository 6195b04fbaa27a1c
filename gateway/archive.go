package gateway

import (
	"time"

	"github.com/Shopify/sarama"

	"github.com/NguyenThanhBinh1210/liveapp/logger"
	"github.com/NguyenThanhBinh1210/liveapp/realtime"
)

// Archiver ships chat and gift traffic to Kafka for downstream persistence.
// The gateway never reads it back; history lives with the backend. Nil
// receiver disables archival.
type Archiver struct {
	producer sarama.SyncProducer
	topic    string
}

func buildArchiveConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // key = room keeps per-room order
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

func NewArchiver(brokers []string, topic string) (*Archiver, error) {
	p, err := sarama.NewSyncProducer(brokers, buildArchiveConfig())
	if err != nil {
		return nil, err
	}
	return &Archiver{producer: p, topic: topic}, nil
}

// Archive publishes one frame keyed by room. Failures are logged, never
// surfaced to the chat path.
func (a *Archiver) Archive(roomID string, f *realtime.Frame) {
	if a == nil {
		return
	}
	data, err := realtime.EncodeFrameJSON(f)
	if err != nil {
		logger.Warnf("[archive] encode err: %v", err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: a.topic,
		Key:   sarama.StringEncoder(roomID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := a.producer.SendMessage(msg); err != nil {
		logger.Warnf("[archive] send err room=%s: %v", roomID, err)
	}
}

func (a *Archiver) Close() error {
	if a == nil {
		return nil
	}
	return a.producer.Close()
}
