package notificaties

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
)

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError is returned when the receiving side answered with an error status.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("notification rejected with status %d: %s", e.StatusCode, e.Body)
}

// HTTPSender posts messages to the /notificaties endpoint of an NRC.
type HTTPSender struct {
	url      string
	clientID string
	secret   string
	http     *http.Client
}

func NewHTTPSender(nrcURL, clientID, secret string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{
		url:      strings.TrimRight(nrcURL, "/") + "/notificaties",
		clientID: clientID,
		secret:   secret,
		http:     client,
	}
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.clientID != "" {
		header, err := tokens.AuthorizationHeader(s.clientID, s.secret, tokens.Options{})
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", header)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return nil
}

// KafkaSender publishes messages on a topic, keyed by kanaal.
type KafkaSender struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSender(brokers []string, topic string) (*KafkaSender, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),
		kgo.RequestRetries(5),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaSender{client: client, topic: topic}, nil
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(msg.Kanaal),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "actie", Value: []byte(msg.Actie)},
			{Key: "resource", Value: []byte(msg.Resource)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (s *KafkaSender) Close() {
	s.client.Close()
}
