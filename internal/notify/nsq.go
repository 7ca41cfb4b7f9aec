package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nsqio/go-nsq"
	"go.uber.org/zap"

	"cyberprint/internal/retry"
)

// Publisher is the part of *nsq.Producer the notifier uses.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NSQNotifier publishes notifications as JSON to a topic consumed by the delivery worker.
type NSQNotifier struct {
	pub   Publisher
	topic string
	log   *zap.Logger
}

func NewNSQNotifier(pub Publisher, topic string, log *zap.Logger) *NSQNotifier {
	return &NSQNotifier{pub: pub, topic: topic, log: log}
}

// NewProducer connects to nsqd and pings it once.
func NewProducer(addr string) (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("ping nsqd: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelWarning)
	return producer, nil
}

func (n *NSQNotifier) Send(ctx context.Context, msg CodeNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.pub.Publish(n.topic, body); err != nil {
		err = fmt.Errorf("publish notification: %w", err)
		if rejected(err) {
			return retry.Permanent(err)
		}
		return err
	}
	n.log.Debug("otp_notification_published",
		zap.String("topic", n.topic),
		zap.String("document_id", msg.DocumentID))
	return nil
}

// rejected reports an nsqd E_BAD_* response: the topic or body is invalid and a resend
// gets the same answer.
func rejected(err error) bool {
	var perr nsq.ErrProtocol
	return errors.As(err, &perr) && strings.HasPrefix(perr.Reason, "E_BAD_")
}
