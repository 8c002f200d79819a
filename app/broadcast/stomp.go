package broadcast

import (
	"context"
	"fmt"

	"github.com/go-stomp/stomp"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
)

// StompPublisher bridges events to a STOMP broker so non-websocket consumers
// (dashboards, recorders) can follow along. Room-scoped events go to a
// per-poll subtopic; everything else to the shared topic.
type StompPublisher struct {
	conn  *stomp.Conn
	topic string
	log   *zap.Logger
}

func NewStompPublisher(addr, user, pass, topic string, log *zap.Logger) (*StompPublisher, error) {
	options := []func(conn *stomp.Conn) error{
		stomp.ConnOpt.Login(user, pass),
		stomp.ConnOpt.Host("/"),
	}
	conn, err := stomp.Dial("tcp", addr, options...)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return &StompPublisher{conn: conn, topic: topic, log: log}, nil
}

func (p *StompPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	destination := p.topic
	if ev.Audience == AudienceRoom {
		destination = p.topic + "." + ev.PollID
	}
	if err := p.conn.Send(destination, "text/plain", payload); err != nil {
		p.log.Warn("broker send failed",
			zap.String("type", ev.Type),
			zap.String("destination", destination),
			zap.Error(err))
		return err
	}
	return nil
}

func (p *StompPublisher) Close() error {
	return p.conn.Disconnect()
}
