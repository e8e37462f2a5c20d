// Package pubsub implements the BatchSender port against Google Cloud
// Pub/Sub using the low-level publisher client, one Publish RPC per
// batch.
package pubsub

import (
	"context"
	"fmt"

	vkit "cloud.google.com/go/pubsub/apiv1"
	pb "cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bft-labs/pubship/internal/domain"
	"github.com/bft-labs/pubship/pkg/log"
)

// Sender publishes batches to a single Pub/Sub topic.
type Sender struct {
	client *vkit.PublisherClient
	topic  string
	logger log.Logger
}

// NewSender creates a publisher client for the given project and topic.
// When credentialsFile is empty, application default credentials are used.
func NewSender(ctx context.Context, projectID, topicID, credentialsFile string, logger log.Logger) (*Sender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := vkit.NewPublisherClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create publisher client: %w", err)
	}

	return &Sender{
		client: client,
		topic:  fmt.Sprintf("projects/%s/topics/%s", projectID, topicID),
		logger: logger,
	}, nil
}

// Send publishes the whole batch in one RPC. Transient gRPC failures are
// marked retryable so the dispatcher re-sends the batch with backoff.
func (s *Sender) Send(ctx context.Context, batch *domain.Batch) error {
	if batch.Empty() {
		return nil
	}

	msgs := make([]*pb.PubsubMessage, len(batch.Messages))
	for i, m := range batch.Messages {
		msgs[i] = &pb.PubsubMessage{
			Data:       m.Payload,
			Attributes: m.Attributes,
		}
	}

	_, err := s.client.Publish(ctx, &pb.PublishRequest{
		Topic:    s.topic,
		Messages: msgs,
	})
	if err != nil {
		if retryable(err) {
			return domain.MarkRetryable(err)
		}
		return err
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Sender) Close() error {
	return s.client.Close()
}

// retryable classifies a publish error. The code set follows the Pub/Sub
// client's own publish retry policy.
func retryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		// Not a gRPC status: connection-level failure, worth retrying.
		return true
	}
	switch st.Code() {
	case codes.Aborted,
		codes.Canceled,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable,
		codes.Unknown:
		return true
	default:
		return false
	}
}
