package domain

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// CorrelationIDKey is the command body field carrying the outbox id. Devices that
// echo it back in telemetry let the correlator match without value heuristics.
const CorrelationIDKey = "correlation_id"

// Command is the device-facing message derived from an outbox entry.
type Command struct {
	EntryID  int64
	DeviceID string
	Topic    string
	Body     []byte
}

// CommandTopic returns the topic a device listens on for commands.
func CommandTopic(namespace, deviceID string) string {
	return namespace + "/" + deviceID + "/command"
}

// NewCommand builds the command for entry. Errors are permanent: the entry can
// never be delivered as stored.
func NewCommand(namespace string, entry *OutboxEntry) (*Command, error) {
	if entry.AggregateID == "" || strings.ContainsAny(entry.AggregateID, "/+#") {
		return nil, NewPermanentPublishError(fmt.Errorf("invalid device id %q", entry.AggregateID))
	}
	if len(entry.Payload) == 0 {
		return nil, NewPermanentPublishError(fmt.Errorf("empty payload for outbox entry %d", entry.ID))
	}

	body := make(map[string]any, len(entry.Payload)+1)
	for key, value := range entry.Payload {
		body[key] = value
	}
	body[CorrelationIDKey] = entry.ID

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, NewPermanentPublishError(fmt.Errorf("malformed payload: %w", err))
	}

	return &Command{
		EntryID:  entry.ID,
		DeviceID: entry.AggregateID,
		Topic:    CommandTopic(namespace, entry.AggregateID),
		Body:     encoded,
	}, nil
}
