package mailer

import (
	"encoding/json"
	"fmt"
	"os"
	"tbs/src/lib"
	awslib "tbs/src/lib/aws"
	"tbs/src/types"
	"tbs/src/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// NewMailerMessage hands the email off to the queue worker. Locally the
// queue is a kafka topic, everywhere else it is SQS.
func NewMailerMessage(input *lib.SendMailInput) error {
	emailQueue := os.Getenv("EMAIL_QUEUE")
	apiEnv := os.Getenv("API_ENV")
	emailBody := &types.JSONB{
		"from":        input.From,
		"from-name":   input.FromName,
		"to":          input.To,
		"cc":          input.Cc,
		"bcc":         input.Bcc,
		"reply-to":    input.ReplyTo,
		"body":        input.Body,
		"html":        input.Html,
		"subject":     input.Subject,
		"attachments": input.Attachments,
	}
	if apiEnv == "local" {
		if err := lib.KafkaProduceMessage("emails", utils.WithSuffix(emailQueue), *emailBody); err != nil {
			return fmt.Errorf("error sending message to queue: %s", err.Error())
		}
		return nil
	}
	body, err := json.Marshal(&emailBody)
	if err != nil {
		return err
	}
	if err := lib.SQSProduceMessage(utils.WithSuffix(emailQueue), string(body)); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}

// HandleMailerMessage is the queue worker side: decode the payload and
// send it through SMTP.
func HandleMailerMessage(payload []byte) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return
	}
	input := lib.SendMailInput{
		From:     str(body["from"]),
		FromName: str(body["from-name"]),
		ReplyTo:  str(body["reply-to"]),
		Subject:  str(body["subject"]),
		Body:     str(body["body"]),
	}
	if html, ok := body["html"].(bool); ok {
		input.Html = html
	}
	input.To = strs(body["to"])
	input.Cc = strs(body["cc"])
	input.Bcc = strs(body["bcc"])
	input.Attachments = strs(body["attachments"])
	if os.Getenv("EMAIL_PROVIDER") == "ses" {
		sendWithSES(&input)
		return
	}
	lib.SendMail(&input)
}

func sendWithSES(input *lib.SendMailInput) {
	content := sestypes.Content{Data: aws.String(input.Body)}
	body := sestypes.Body{Text: &content}
	if input.Html {
		body = sestypes.Body{Html: &content}
	}
	awslib.SESSendMessage(aws.String(input.From), &sestypes.Destination{
		ToAddresses:  input.To,
		CcAddresses:  input.Cc,
		BccAddresses: input.Bcc,
	}, &sestypes.Message{
		Subject: &sestypes.Content{Data: aws.String(input.Subject)},
		Body:    &body,
	})
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strs(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
