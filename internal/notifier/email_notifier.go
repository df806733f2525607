package notifier

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	config "github.com/Keoroanthony/orders-api/configs"
)

var receiptHTML = template.Must(template.New("receipt").Parse(`
        <html>
        <body>
            <p>Hi {{.RecipientName}},</p>
            <p>Order #{{.OrderID}} has been recorded.</p>
            <ul>
                <li>Customer: {{.CustomerName}} ({{.CustomerCode}})</li>
                <li>Item: {{.Item}}</li>
                <li>Amount: {{.Amount}}</li>
            </ul>
        </body>
        </html>`))

// Receipt is what the order receipt email says.
type Receipt struct {
	RecipientName string
	OrderID       uint
	CustomerName  string
	CustomerCode  string
	Item          string
	Amount        string
}

// ReceiptSender emails a copy of a recorded order to the caller who recorded it.
type ReceiptSender interface {
	SendOrderReceipt(ctx context.Context, to string, r Receipt) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESMailer struct {
	client sesAPI
	sender string
}

// NewSESMailer builds a client from static credentials when they are set and
// from the default AWS chain otherwise.
func NewSESMailer(ctx context.Context, cfg config.EmailConfig) (*SESMailer, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	return &SESMailer{client: ses.NewFromConfig(awsCfg), sender: cfg.SenderEmail}, nil
}

func (m *SESMailer) SendOrderReceipt(ctx context.Context, to string, r Receipt) error {
	if m.sender == "" {
		return fmt.Errorf("sender email address is not configured")
	}
	if to == "" {
		return fmt.Errorf("recipient email address is empty")
	}

	subject := fmt.Sprintf("Order #%d recorded for %s", r.OrderID, r.CustomerName)

	var bodyHTML strings.Builder
	if err := receiptHTML.Execute(&bodyHTML, r); err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}

	bodyText := fmt.Sprintf(
		"Hi %s,\n\nOrder #%d has been recorded.\n\nCustomer: %s (%s)\nItem: %s\nAmount: %s\n",
		r.RecipientName, r.OrderID, r.CustomerName, r.CustomerCode, r.Item, r.Amount)

	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(subject)},
			Body: &types.Body{
				Html: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(bodyHTML.String())},
				Text: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(bodyText)},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.InfoContext(ctx, "order receipt email sent", "order_id", r.OrderID, "to", to)
	return nil
}
