package kafka

import (
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ticketing/internal/logger"
)

// EnsureTopicsExist creates the given topics on the cluster controller,
// skipping ones that already exist. Individual failures are logged and
// do not abort the rest.
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("TOPICS", topic, "created")
		case err.Error() == "kafka server: topic already exists":
			log.LogKafka("TOPICS", topic, "already exists")
		default:
			log.Warn("KAFKA", "create topic "+topic+": "+err.Error())
		}
	}

	// Topic metadata propagates asynchronously.
	time.Sleep(time.Second)
	return nil
}
