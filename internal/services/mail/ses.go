package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender delivers through AWS SES.
type SESSender struct {
	client sesAPI
	from   string
	log    *slog.Logger
}

// NewSESSender loads the default AWS credential chain for region.
func NewSESSender(ctx context.Context, region, from string, log *slog.Logger) (*SESSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESSender{
		client: ses.NewFromConfig(cfg),
		from:   from,
		log:    log,
	}, nil
}

func (s *SESSender) Send(ctx context.Context, msg Message) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(msg.HTML)},
				Text: &types.Content{Data: aws.String(msg.Text)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.log.Error("failed to send email via SES", slog.String("to", msg.To), slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.log.Info("email sent", slog.String("to", msg.To), slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
