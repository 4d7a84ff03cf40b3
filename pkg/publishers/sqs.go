package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

type sqsClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsPublisher sends one message per ingested article to a queue.
type sqsPublisher struct {
	id       string
	queueURL string
	fifo     bool
	client   sqsClient
	log      logger.Logger
}

func newSQSPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.SQS == nil {
		return nil, fmt.Errorf("publisher %q: sqs block missing", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SQS.Region, cfg.SQS.AWSAuth)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: load aws config: %w", cfg.ID, err)
	}
	return &sqsPublisher{
		id:       cfg.ID,
		queueURL: cfg.SQS.QueueURL,
		fifo:     cfg.SQS.FIFO(),
		client:   sqs.NewFromConfig(awsCfg, sqsEndpoint(cfg.SQS.Endpoint)),
		log:      logger.OrNop(log),
	}, nil
}

func (s *sqsPublisher) ID() string   { return s.id }
func (s *sqsPublisher) Type() string { return TypeSQS }

func (s *sqsPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.Article.ID, err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: sqsAttributes(evt),
	}
	if s.fifo {
		in.MessageGroupId, in.MessageDeduplicationId = fifoKeys(evt)
	}

	out, err := s.client.SendMessage(ctx, in)
	if err != nil {
		return fmt.Errorf("sqs send %s: %w", evt.Article.ID, err)
	}
	s.log.DebugObj("event queued", "publisher_delivery", map[string]any{
		"publisher_id": s.id,
		"article_id":   evt.Article.ID,
		"message_id":   aws.ToString(out.MessageId),
	})
	return nil
}

func sqsEndpoint(endpoint string) func(*sqs.Options) {
	return func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}
}
