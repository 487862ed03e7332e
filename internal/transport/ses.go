package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"briefkasten/internal/config"
	"briefkasten/internal/relay"
)

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES delivers messages via the AWS SES v2 API. The composer already
// produces the complete RFC 5322 message, so every send uses the raw
// message form.
type SES struct {
	client SendEmailAPI
}

// NewSES creates an SES transport. Static credentials are used when
// configured; otherwise the default AWS credential chain applies.
func NewSES(ctx context.Context, cfg config.SESConfig) (*SES, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SES{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewSESWithClient creates an SES transport with a custom client, used
// for testing.
func NewSESWithClient(client SendEmailAPI) *SES {
	return &SES{client: client}
}

// Send submits the raw message to the SES API. No retries: delivery is
// at-most-once, like every other transport here.
func (s *SES) Send(ctx context.Context, msg *relay.Outbound) error {
	if len(msg.To) == 0 {
		return &DeliveryError{Transport: s.Name(), Err: ErrNoRecipients}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination: &types.Destination{
			ToAddresses: msg.To,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{
				Data: msg.Raw,
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return &DeliveryError{Transport: s.Name(), Err: err}
	}

	return nil
}

// Name returns the transport name.
func (s *SES) Name() string {
	return "ses"
}
