package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange artifacts are published to.
const DefaultExchange = "tutorloop.artifacts"

// RabbitMQPoster publishes artifacts to a RabbitMQ topic exchange. Routing
// keys are "artifact.<kind>" so downstream consumers can subscribe per
// artifact family.
type RabbitMQPoster struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
	mu       sync.Mutex
}

// envelope is the wire shape of a posted artifact.
type envelope struct {
	ArtifactID     string                   `json:"artifact_id"`
	ConversationID string                   `json:"conversation_id"`
	PostedAt       time.Time                `json:"posted_at"`
	Artifact       *domain.ConflictArtifact `json:"artifact"`
}

// NewRabbitMQPoster connects to RabbitMQ and declares the exchange.
func NewRabbitMQPoster(url, exchange string, logger *slog.Logger) (*RabbitMQPoster, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("RabbitMQ artifact poster connected", "exchange", exchange)

	return &RabbitMQPoster{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Post publishes the artifact and returns its assigned ID.
func (p *RabbitMQPoster) Post(ctx context.Context, conversationID string, artifact *domain.ConflictArtifact) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	artifactID := uuid.New().String()
	body, err := json.Marshal(envelope{
		ArtifactID:     artifactID,
		ConversationID: conversationID,
		PostedAt:       time.Now().UTC(),
		Artifact:       artifact,
	})
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}

	routingKey := fmt.Sprintf("artifact.%s", artifact.Kind)
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Error("failed to post artifact",
			"routing_key", routingKey,
			"conversation_id", conversationID,
			"error", err,
		)
		return "", err
	}

	p.logger.Debug("artifact posted",
		"artifact_id", artifactID,
		"routing_key", routingKey,
		"conversation_id", conversationID,
	)
	return artifactID, nil
}

// Close closes the channel and connection.
func (p *RabbitMQPoster) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
