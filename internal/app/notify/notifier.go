// Package notify defines the outbound notification boundary. Delivery is
// a collaborator concern; the engine only ever sends best-effort and
// never lets a delivery failure roll back financial state.
package notify

import (
	"context"
	"sync"

	"github.com/Goodisoft/vestearning/pkg/logger"
)

// Notifier delivers a message to a user. Implementations own transport,
// templating and retries.
type Notifier interface {
	Notify(ctx context.Context, userID, title string, data map[string]string) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, userID, title string, data map[string]string) error

func (f Func) Notify(ctx context.Context, userID, title string, data map[string]string) error {
	if f == nil {
		return nil
	}
	return f(ctx, userID, title, data)
}

// LogNotifier writes notifications to the log. It stands in when no real
// delivery channel is configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewDefault("notify")
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, userID, title string, data map[string]string) error {
	entry := n.log.WithField("user_id", userID).WithField("title", title)
	for k, v := range data {
		entry = entry.WithField(k, v)
	}
	entry.Info("notification")
	return nil
}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

// Message is one recorded notification.
type Message struct {
	UserID string
	Title  string
	Data   map[string]string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Notify return the given error.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

func (r *Recorder) Notify(_ context.Context, userID, title string, data map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	r.sent = append(r.sent, Message{UserID: userID, Title: title, Data: copied})
	return nil
}

// Sent returns the notifications recorded so far.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}
