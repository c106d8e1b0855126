// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the slice of the SES API the email channel needs.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// LoadConfig resolves AWS credentials from the default chain for region.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

func NewSESClient(cfg aws.Config) *ses.Client {
	return ses.NewFromConfig(cfg)
}

// TextEmail builds a plain text + HTML SendEmailInput with the same body.
func TextEmail(from, to, subject, body string) *ses.SendEmailInput {
	return &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(from),
	}
}
