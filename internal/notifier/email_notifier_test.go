package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSendOrderReceipt(t *testing.T) {
	client := &fakeSES{}
	mailer := &SESMailer{client: client, sender: "orders@example.com"}

	err := mailer.SendOrderReceipt(context.Background(), "tester@example.com", Receipt{
		RecipientName: "Tester",
		OrderID:       7,
		CustomerName:  "Alice",
		CustomerCode:  "C001",
		Item:          "Widget",
		Amount:        "123.45",
	})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "orders@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"tester@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Order #7 recorded for Alice", aws.ToString(client.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "Amount: 123.45")
}

func TestSendOrderReceiptEscapesHTML(t *testing.T) {
	client := &fakeSES{}
	mailer := &SESMailer{client: client, sender: "orders@example.com"}

	err := mailer.SendOrderReceipt(context.Background(), "tester@example.com", Receipt{
		RecipientName: "<b>Tess</b>",
		OrderID:       8,
		CustomerName:  "Alice & Co",
		CustomerCode:  `C"1`,
		Item:          `<a href="https://evil.example">click</a><script>x()</script>`,
		Amount:        "1.00",
	})
	require.NoError(t, err)

	html := aws.ToString(client.input.Message.Body.Html.Data)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, `<a href=`)
	assert.NotContains(t, html, "<b>Tess</b>")
	assert.Contains(t, html, "&lt;script&gt;x()&lt;/script&gt;")
	assert.Contains(t, html, "Alice &amp; Co")
	assert.Contains(t, html, "<li>Amount: 1.00</li>")

	text := aws.ToString(client.input.Message.Body.Text.Data)
	assert.Contains(t, text, "Item: <a href=", "the plain-text part is not HTML")
}

func TestSendOrderReceiptErrors(t *testing.T) {
	assert.Error(t, (&SESMailer{client: &fakeSES{}}).SendOrderReceipt(context.Background(), "a@b.c", Receipt{}))
	assert.Error(t, (&SESMailer{client: &fakeSES{}, sender: "x@y.z"}).SendOrderReceipt(context.Background(), "", Receipt{}))

	failing := &SESMailer{client: &fakeSES{err: errors.New("throttled")}, sender: "x@y.z"}
	assert.ErrorContains(t, failing.SendOrderReceipt(context.Background(), "a@b.c", Receipt{}), "throttled")
}
