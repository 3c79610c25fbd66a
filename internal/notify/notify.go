// Package notify hands rendered notifications off to the out-of-process
// email worker. The sink enqueues at most one delivery attempt per call;
// retries, if any, belong to the worker consuming the queue.
package notify

import "context"

// Email is a rendered message ready for the email worker.
type Email struct {
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	To      []string `json:"to"`
}

// Sink accepts notifications for asynchronous delivery. Enqueue returns as
// soon as the message is handed to the queue; callers never learn the
// delivery outcome.
type Sink interface {
	Enqueue(ctx context.Context, email Email) error
}
