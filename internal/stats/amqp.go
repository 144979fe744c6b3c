package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp091.Channel the sink needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPSink publishes records to a topic exchange so other services can
// follow a learner's progress.
type AMQPSink struct {
	conn       *amqp091.Connection
	ch         channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

// DialAMQP connects to uri and declares exchange. It returns nil, nil when
// uri is empty so callers can leave publishing disabled.
func DialAMQP(uri, exchange, routingKey string, logger *slog.Logger) (*AMQPSink, error) {
	if uri == "" {
		return nil, nil
	}

	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
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
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("statistics publisher ready", slog.String("exchange", exchange))
	s := newAMQPSink(ch, exchange, routingKey, logger)
	s.conn = conn
	return s, nil
}

func newAMQPSink(ch channel, exchange, routingKey string, logger *slog.Logger) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange, routingKey: routingKey, logger: logger}
}

func (s *AMQPSink) Append(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal statistic: %w", err)
	}

	err = s.ch.PublishWithContext(ctx,
		s.exchange,   // exchange
		s.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			Headers: amqp091.Table{
				"session_id":  rec.SessionID,
				"question_id": rec.QuestionID,
				"skill_cd":    rec.SkillCd,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish statistic: %w", err)
	}
	s.logger.Debug("published statistic", slog.String("question_id", rec.QuestionID))
	return nil
}

// Close closes the channel and connection.
func (s *AMQPSink) Close() error {
	if s == nil {
		return nil
	}
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
