package application

import "context"

// Reply is what the customer answered at a text prompt. Given is false when the
// prompt was cancelled.
type Reply struct {
	Text  string
	Given bool
}

// Answer is a reply carrying text.
func Answer(text string) Reply { return Reply{Text: text, Given: true} }

// Cancelled is the reply of a dismissed prompt.
var Cancelled = Reply{}

// Prompter asks the customer for input and blocks until they answer or cancel.
// Errors are reserved for the input source itself failing.
type Prompter interface {
	PromptText(ctx context.Context, message string) (Reply, error)
	// PromptChoice returns the index of the picked option; ok is false on cancellation.
	PromptChoice(ctx context.Context, message string, options []string) (index int, ok bool, err error)
}

// Notifier displays a message to the customer.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type IDGenerator interface {
	NewID() string
}
