package publishers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported publisher types.
const (
	TypeSQS       = "sqs"
	TypeSNS       = "sns"
	TypeHTTP      = "http"
	TypeGCPPubSub = "gcp_pubsub"
)

const (
	httpDefaultMethod         = http.MethodPost
	httpDefaultTimeoutSeconds = 5
	httpMaxRetries            = 5
)

// PublisherConfig is one entry of the publishers file. Exactly the block
// matching Type is read; the others are ignored.
type PublisherConfig struct {
	ID        string                    `json:"id" yaml:"id"`
	Type      string                    `json:"type" yaml:"type"`
	Enabled   *bool                     `json:"enabled" yaml:"enabled"`
	SQS       *SQSPublisherConfig       `json:"sqs" yaml:"sqs"`
	SNS       *SNSPublisherConfig       `json:"sns" yaml:"sns"`
	HTTP      *HTTPPublisherConfig      `json:"http" yaml:"http"`
	GCPPubSub *GCPPubSubPublisherConfig `json:"gcp_pubsub" yaml:"gcp_pubsub"`
}

// SQSPublisherConfig targets a queue. Queues whose URL ends in ".fifo" get
// per-source message groups and per-article deduplication ids.
type SQSPublisherConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
	AWSAuth  `yaml:",inline"`
}

// FIFO reports whether the queue is a FIFO queue.
func (c SQSPublisherConfig) FIFO() bool { return strings.HasSuffix(c.QueueURL, ".fifo") }

// SNSPublisherConfig targets a topic. FIFO topics are detected from the ARN suffix.
type SNSPublisherConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
	AWSAuth  `yaml:",inline"`
}

// FIFO reports whether the topic is a FIFO topic.
func (c SNSPublisherConfig) FIFO() bool { return strings.HasSuffix(c.TopicARN, ".fifo") }

// GCPPubSubPublisherConfig targets a Pub/Sub topic. Application default
// credentials apply when CredentialsFile is empty.
type GCPPubSubPublisherConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig posts each event as JSON to a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Retries        int               `json:"retries" yaml:"retries"`
}

// EnabledValue defaults to true when the flag is omitted.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// normalize trims every field and fills defaults for the active block.
func (cfg PublisherConfig) normalize() PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	switch cfg.Type {
	case TypeSQS:
		if cfg.SQS != nil {
			c := SQSPublisherConfig{
				QueueURL: strings.TrimSpace(cfg.SQS.QueueURL),
				Region:   strings.TrimSpace(cfg.SQS.Region),
				AWSAuth:  cfg.SQS.AWSAuth.normalize(),
			}
			cfg.SQS = &c
		}
	case TypeSNS:
		if cfg.SNS != nil {
			c := SNSPublisherConfig{
				TopicARN: strings.TrimSpace(cfg.SNS.TopicARN),
				Region:   strings.TrimSpace(cfg.SNS.Region),
				AWSAuth:  cfg.SNS.AWSAuth.normalize(),
			}
			cfg.SNS = &c
		}
	case TypeGCPPubSub:
		if cfg.GCPPubSub != nil {
			c := GCPPubSubPublisherConfig{
				ProjectID:       strings.TrimSpace(cfg.GCPPubSub.ProjectID),
				Topic:           strings.TrimSpace(cfg.GCPPubSub.Topic),
				CredentialsFile: strings.TrimSpace(cfg.GCPPubSub.CredentialsFile),
			}
			cfg.GCPPubSub = &c
		}
	case TypeHTTP:
		if cfg.HTTP != nil {
			c := *cfg.HTTP
			c.URL = strings.TrimSpace(c.URL)
			c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
			if c.Method == "" {
				c.Method = httpDefaultMethod
			}
			if c.TimeoutSeconds <= 0 {
				c.TimeoutSeconds = httpDefaultTimeoutSeconds
			}
			c.Retries = min(max(c.Retries, 0), httpMaxRetries)
			headers := make(map[string]string, len(c.Headers))
			for k, v := range c.Headers {
				if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
					headers[http.CanonicalHeaderKey(k)] = v
				}
			}
			c.Headers = headers
			cfg.HTTP = &c
		}
	}
	return cfg
}

func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	missing := func(field string) error {
		return fmt.Errorf("publisher %q: %s is required", cfg.ID, field)
	}

	switch cfg.Type {
	case "":
		return missing("type")
	case TypeSQS:
		switch {
		case cfg.SQS == nil:
			return missing("sqs block")
		case cfg.SQS.QueueURL == "":
			return missing("sqs.uri")
		case cfg.SQS.Region == "":
			return missing("sqs.region")
		}
		return cfg.SQS.AWSAuth.validate(cfg.ID, "sqs")
	case TypeSNS:
		switch {
		case cfg.SNS == nil:
			return missing("sns block")
		case cfg.SNS.TopicARN == "":
			return missing("sns.topic_arn")
		case !strings.HasPrefix(cfg.SNS.TopicARN, "arn:"):
			return fmt.Errorf("publisher %q: sns.topic_arn %q is not an ARN", cfg.ID, cfg.SNS.TopicARN)
		case cfg.SNS.Region == "":
			return missing("sns.region")
		}
		return cfg.SNS.AWSAuth.validate(cfg.ID, "sns")
	case TypeGCPPubSub:
		switch {
		case cfg.GCPPubSub == nil:
			return missing("gcp_pubsub block")
		case cfg.GCPPubSub.ProjectID == "":
			return missing("gcp_pubsub.project_id")
		case cfg.GCPPubSub.Topic == "":
			return missing("gcp_pubsub.topic")
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return missing("http block")
		}
		if cfg.HTTP.URL == "" {
			return missing("http.url")
		}
		u, err := url.Parse(cfg.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("publisher %q: http.url %q must be an absolute http(s) URL", cfg.ID, cfg.HTTP.URL)
		}
	default:
		return fmt.Errorf("publisher %q: unknown type %q", cfg.ID, cfg.Type)
	}
	return nil
}

// ConfigRegistry is the validated content of a publishers file.
type ConfigRegistry struct {
	publishers []PublisherConfig
}

// LoadRegistry reads a YAML or JSON publishers file. Unknown keys are rejected
// so that a misspelt block does not silently disable a publisher.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var doc struct {
		Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case ".yaml", ".yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
	default:
		return nil, fmt.Errorf("publishers file %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", path, err)
	}
	return NewConfigRegistry(doc.Publishers)
}

// NewConfigRegistry normalizes and validates entries. Ids must be unique
// across enabled and disabled entries.
func NewConfigRegistry(entries []PublisherConfig) (*ConfigRegistry, error) {
	if len(entries) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}
	seen := make(map[string]struct{}, len(entries))
	reg := &ConfigRegistry{publishers: make([]PublisherConfig, 0, len(entries))}
	for i, entry := range entries {
		cfg := entry.normalize()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := seen[cfg.ID]; dup {
			return nil, fmt.Errorf("publishers[%d]: duplicate publisher id %q", i, cfg.ID)
		}
		seen[cfg.ID] = struct{}{}
		reg.publishers = append(reg.publishers, cfg)
	}
	return reg, nil
}

// ByID looks up a publisher entry regardless of its enabled flag.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}
	id = strings.TrimSpace(id)
	for _, cfg := range r.publishers {
		if cfg.ID == id {
			return cfg, true
		}
	}
	return PublisherConfig{}, false
}

// All returns every entry in file order.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}
	return append([]PublisherConfig(nil), r.publishers...)
}

// Enabled returns the entries whose enabled flag is unset or true.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}
