package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/orbitdesk-ai/support-platform/internal/model"
)

const (
	// StreamName is the name of the message threads stream.
	StreamName = "THREADS"

	// SubjectPrefix is the prefix for all thread subjects.
	SubjectPrefix = "conv"

	// maxListBatch bounds one List fetch from the stream.
	maxListBatch = 512
)

// ThreadStore persists thread messages as an append-only JetStream stream.
// The stream sequence provides the total order for each thread: concurrent
// appends serialize at the server, so two messages published in the same
// millisecond still get distinct, stable positions.
type ThreadStore struct {
	client *Client
}

// NewThreadStore creates a thread store over the given client.
func NewThreadStore(client *Client) *ThreadStore {
	return &ThreadStore{client: client}
}

// EnsureStream ensures the threads stream exists with proper configuration.
func (s *ThreadStore) EnsureStream(ctx context.Context) error {
	js := s.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		MaxBytes:    100 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "All conversation thread messages",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// messageSubject returns the subject for a message.
func messageSubject(orgID, threadID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.%s.msg.%s", SubjectPrefix, orgID, threadID, role)
}

// threadFilter returns the filter subject for all messages in a thread.
func threadFilter(orgID, threadID string) string {
	return fmt.Sprintf("%s.%s.%s.msg.>", SubjectPrefix, orgID, threadID)
}

// Append publishes the message and returns its stream sequence.
func (s *ThreadStore) Append(ctx context.Context, msg *model.Message) (uint64, error) {
	subject := messageSubject(msg.OrgID, msg.ThreadID, msg.Role)

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := s.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}

	msg.Sequence = ack.Sequence
	return ack.Sequence, nil
}

// List returns messages with sequence > afterSeq, ascending, up to limit.
func (s *ThreadStore) List(ctx context.Context, orgID, threadID string, afterSeq uint64, limit int) ([]model.Message, bool, error) {
	js := s.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: threadFilter(orgID, threadID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}

	if afterSeq > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSeq + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	if limit <= 0 || limit > maxListBatch {
		limit = maxListBatch
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Fetch one past the page size so hasMore reflects actual stream
	// content instead of guessing from a full page.
	batch, err := consumer.Fetch(limit+1, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch messages: %w", err)
	}

	var messages []model.Message
	for msg := range batch.Messages() {
		if fetchCtx.Err() != nil {
			break
		}

		var message model.Message
		if err := json.Unmarshal(msg.Data(), &message); err != nil {
			continue
		}

		if meta, err := msg.Metadata(); err == nil {
			message.Sequence = meta.Sequence.Stream
		}

		messages = append(messages, message)
		if len(messages) > limit {
			break
		}
	}

	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, false, fmt.Errorf("batch error: %w", batch.Error())
	}

	messages, hasMore := trimPage(messages, limit)
	return messages, hasMore, nil
}

// trimPage cuts a limit+1 fetch down to the page size. The extra row only
// signals that another page exists.
func trimPage(messages []model.Message, limit int) ([]model.Message, bool) {
	if len(messages) <= limit {
		return messages, false
	}
	return messages[:limit], true
}

// Last returns the newest message in the thread, or nil when empty.
func (s *ThreadStore) Last(ctx context.Context, orgID, threadID string) (*model.Message, error) {
	js := s.client.JetStream()

	consumer, err := js.CreateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		FilterSubject: threadFilter(orgID, threadID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverLastPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}

	for msg := range batch.Messages() {
		var message model.Message
		if err := json.Unmarshal(msg.Data(), &message); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			message.Sequence = meta.Sequence.Stream
		}
		return &message, nil
	}

	return nil, nil
}
