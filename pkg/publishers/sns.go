package publishers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsPublisher announces ingested articles on a topic. The subject line
// carries the article title so email subscriptions stay readable.
type snsPublisher struct {
	id       string
	topicARN string
	fifo     bool
	client   snsClient
	log      logger.Logger
}

// snsSubjectLimit is the maximum Subject length SNS accepts.
const snsSubjectLimit = 100

func newSNSPublisher(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("publisher %q: sns block missing", cfg.ID)
	}
	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.Region, cfg.SNS.AWSAuth)
	if err != nil {
		return nil, fmt.Errorf("publisher %q: load aws config: %w", cfg.ID, err)
	}
	return &snsPublisher{
		id:       cfg.ID,
		topicARN: cfg.SNS.TopicARN,
		fifo:     cfg.SNS.FIFO(),
		client:   sns.NewFromConfig(awsCfg, snsEndpoint(cfg.SNS.Endpoint)),
		log:      logger.OrNop(log),
	}, nil
}

func (s *snsPublisher) ID() string   { return s.id }
func (s *snsPublisher) Type() string { return TypeSNS }

func (s *snsPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.Article.ID, err)
	}

	in := &sns.PublishInput{
		TopicArn:          aws.String(s.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: snsAttributes(evt),
	}
	if subject := snsSubject(evt.Article.Title); subject != "" {
		in.Subject = aws.String(subject)
	}
	if s.fifo {
		in.MessageGroupId, in.MessageDeduplicationId = fifoKeys(evt)
	}

	out, err := s.client.Publish(ctx, in)
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", evt.Article.ID, err)
	}
	s.log.DebugObj("event announced", "publisher_delivery", map[string]any{
		"publisher_id": s.id,
		"article_id":   evt.Article.ID,
		"message_id":   aws.ToString(out.MessageId),
	})
	return nil
}

// snsSubject keeps printable ASCII only and truncates to the SNS limit.
func snsSubject(title string) string {
	b := make([]byte, 0, min(len(title), snsSubjectLimit))
	for i := 0; i < len(title) && len(b) < snsSubjectLimit; i++ {
		if c := title[i]; c >= 0x20 && c < 0x7f {
			b = append(b, c)
		}
	}
	return string(b)
}

func snsEndpoint(endpoint string) func(*sns.Options) {
	return func(o *sns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}
}
