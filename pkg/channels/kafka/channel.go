// Package kafka provides a watermill Kafka publisher for invocation events.
package kafka

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// brokerTimeout keeps a stalled broker from holding a publish for sarama's
// 30s network defaults.
const brokerTimeout = 5 * time.Second

var ErrNoBrokers = errors.New("KAFKA_BROKERS environment variable is not set or empty")

// Brokers reads the comma separated KAFKA_BROKERS list.
func Brokers() ([]string, error) {
	var brokers []string

	for _, broker := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}

	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}

	return brokers, nil
}

// CreatePublisher connects a synchronous Kafka publisher. The gateway never
// consumes its own events, so no subscriber is created.
func CreatePublisher(logger watermill.LoggerAdapter) (*kafka.Publisher, error) {
	brokers, err := Brokers()
	if err != nil {
		return nil, err
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true
	saramaPublisherConfig.Producer.Timeout = brokerTimeout
	saramaPublisherConfig.Producer.Retry.Max = 1
	saramaPublisherConfig.Metadata.Retry.Max = 1
	saramaPublisherConfig.Net.DialTimeout = brokerTimeout
	saramaPublisherConfig.Net.ReadTimeout = brokerTimeout
	saramaPublisherConfig.Net.WriteTimeout = brokerTimeout

	return kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
}
