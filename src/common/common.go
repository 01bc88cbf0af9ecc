package common

import (
	"log"
	"os"
	"tbs/src/lib/mailer"
	"tbs/src/utils"

	"tbs/src/lib"
	awslib "tbs/src/lib/aws"
)

// StartQueueWorkers wires the email queue to its worker. Locally the
// queue is a kafka topic; deployed environments consume from SQS.
func StartQueueWorkers() {
	emailQueue := utils.WithSuffix(os.Getenv("EMAIL_QUEUE"))
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		if _, err := lib.KafkaCreateTopics(emailQueue); err != nil {
			log.Printf("[workers] Could not ensure topics: %s\n", err.Error())
		}
		lib.KafkaConsumer("emails", emailQueue, mailer.HandleMailerMessage)
		return
	}
	emails := awslib.NewSQSConsumer(emailQueue, func(payload string) {
		mailer.HandleMailerMessage([]byte(payload))
	})
	emails.Listen()

	dlq := awslib.NewSQSConsumer(utils.WithSuffix("DLQ"), func(payload string) {
		log.Println("DLQ: message received")
	})
	dlq.Listen()
}
