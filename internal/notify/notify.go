// Package notify relays task status changes to whoever is watching a job:
// in-process subscribers through a Hub and remote listeners through a
// socket.io connection.
//
// Relaying is fire-and-forget. A slow or absent listener never holds up the
// job, and relay errors are reported to the caller only to be logged.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/vk/jobgridgo/internal/model"
)

// Message is one status change as seen by a listener.
type Message struct {
	JobID    string
	TaskID   string
	TaskName string
	Status   model.StatusType
	// Output is the captured output of a terminal status, empty otherwise.
	Output string
	Time   time.Time
}

// NewMessage builds a message from a status and its output.
func NewMessage(status model.TaskStatus, output string) Message {
	return Message{
		JobID:    status.JobID,
		TaskID:   status.TaskID,
		TaskName: status.TaskName,
		Status:   status.Type,
		Output:   output,
		Time:     status.Time,
	}
}

// Payload is the wire form of a message.
func (m Message) Payload() map[string]any {
	return map[string]any{
		"jobId":    m.JobID,
		"taskId":   m.TaskID,
		"taskName": m.TaskName,
		"status":   m.Status.String(),
		"output":   m.Output,
		"time":     m.Time.UTC().Format(time.RFC3339Nano),
	}
}

// Relay delivers messages to listeners.
type Relay interface {
	Notify(ctx context.Context, msg Message) error
}

// Multi fans a message out to every relay and joins their errors.
type Multi []Relay

func (m Multi) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, r := range m {
		if err := r.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
