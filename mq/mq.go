// Package mq abstracts the purge queue: annotation deletions too large for a
// request cycle (account deletes, per-document clears) are queued here and
// drained by the worker consumer.
package mq

import "context"

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	// Receive long-polls for one message. A nil message with a nil error
	// means the poll came back empty. visibilityTimeout is how long the
	// consumer may hold the message before it becomes visible again.
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	// Delete acks a fully processed message so it is not redelivered.
	Delete(ctx context.Context, msg *Message) error
}

// Message is one purge job. Id is the broker's receipt handle, valid only
// for the current visibility window.
type Message struct {
	Id   string
	Body string
}
