package kafka

import (
	"log"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicTicketPurchased   = "clubs.ticket.purchased"
	TopicTicketCancelled   = "clubs.ticket.cancelled"
	TopicMemberJoined      = "clubs.member.joined"
	TopicEmailVerification = "clubs.email.verification"
)

// RequiredTopics lists every topic the service publishes to.
func RequiredTopics() []string {
	return []string{
		TopicTicketPurchased,
		TopicTicketCancelled,
		TopicMemberJoined,
		TopicEmailVerification,
	}
}

// EnsureTopicsExist creates Kafka topics if they don't already exist.
func EnsureTopicsExist(brokers []string, topics []string) error {
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
		topicConfigs := []kafka.TopicConfig{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		}

		err = controllerConn.CreateTopics(topicConfigs...)
		if err != nil {
			if err.Error() == "kafka server: topic already exists" {
				continue
			}
			log.Printf("Error creating topic %s: %v", topic, err)
			// Keep trying the remaining topics.
		}
	}

	// Give the brokers a moment to settle the new topics.
	time.Sleep(1 * time.Second)
	return nil
}
