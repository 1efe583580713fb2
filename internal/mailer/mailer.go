// Package mailer hands verification emails to the delivery fleet through
// the message broker. Actual SMTP delivery happens outside this service.
package mailer

import (
	"context"
	"encoding/json"
	"log"
)

// VerificationChannel is the broker channel email jobs are published on.
const VerificationChannel = "email.verification"

// Publisher is the broker side the mailer needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// VerificationJob is the payload consumed by the delivery fleet.
type VerificationJob struct {
	To        string `json:"to"`
	Username  string `json:"username"`
	VerifyURL string `json:"verify_url"`
}

// QueueMailer publishes verification jobs to the broker.
type QueueMailer struct {
	publisher Publisher
}

func NewQueueMailer(publisher Publisher) *QueueMailer {
	return &QueueMailer{publisher: publisher}
}

// SendVerification enqueues a verification email job.
func (m *QueueMailer) SendVerification(ctx context.Context, email, username, verifyURL string) error {
	payload, err := json.Marshal(VerificationJob{
		To:        email,
		Username:  username,
		VerifyURL: verifyURL,
	})
	if err != nil {
		return err
	}
	_, err = m.publisher.Publish(ctx, VerificationChannel, payload, map[string]string{
		"type": "verification",
	})
	return err
}

// LogMailer replaces the broker in deployments without one. The link lands
// in the server log instead of an inbox.
type LogMailer struct{}

func (LogMailer) SendVerification(ctx context.Context, email, username, verifyURL string) error {
	log.Printf("mailer: no broker configured, verification link for %s: %s", email, verifyURL)
	return nil
}
