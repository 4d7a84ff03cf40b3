package publishers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// AWSAuth is shared by the SQS and SNS blocks. Empty keys fall back to the
// default credential chain; Endpoint targets emulators such as LocalStack.
type AWSAuth struct {
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `json:"session_token" yaml:"session_token"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

func (a AWSAuth) normalize() AWSAuth {
	return AWSAuth{
		AccessKeyID:     strings.TrimSpace(a.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(a.SecretAccessKey),
		SessionToken:    strings.TrimSpace(a.SessionToken),
		Endpoint:        strings.TrimSpace(a.Endpoint),
	}
}

func (a AWSAuth) validate(id, block string) error {
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return fmt.Errorf("publisher %q: %s.access_key_id and %s.secret_access_key go together", id, block, block)
	}
	return nil
}

// staticCredentials reports whether keys were configured explicitly.
func (a AWSAuth) staticCredentials() bool { return a.AccessKeyID != "" }

func loadAWSConfig(ctx context.Context, region string, auth AWSAuth) (aws.Config, error) {
	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(region)}
	if auth.staticCredentials() {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(auth.AccessKeyID, auth.SecretAccessKey, auth.SessionToken),
		))
	}
	return awscfg.LoadDefaultConfig(ctx, opts...)
}

// SQS and SNS share the attribute shape but not the Go type.

func sqsAttributes(evt Event) map[string]sqstypes.MessageAttributeValue {
	out := make(map[string]sqstypes.MessageAttributeValue)
	for k, v := range evt.Attributes() {
		out[k] = sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	return out
}

func snsAttributes(evt Event) map[string]snstypes.MessageAttributeValue {
	out := make(map[string]snstypes.MessageAttributeValue)
	for k, v := range evt.Attributes() {
		out[k] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	return out
}

// fifoKeys groups FIFO messages by source and deduplicates on article id.
func fifoKeys(evt Event) (group, dedup *string) {
	group = aws.String(evt.SourceID)
	if evt.SourceID == "" {
		group = aws.String("newsdesk")
	}
	return group, aws.String(evt.Article.ID)
}
