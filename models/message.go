package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Outbound websocket texts
const (
	UnknownCommandReply = "Unknown message type"
	RateLimitedReply    = "Error: rate limit exceeded"
)

func RegisteredReply(connectedClients int) string {
	return fmt.Sprintf("Registered event reminder. We have %d connected clients.", connectedClients)
}

func UnregisteredReply(id string) string {
	return "Unregistered event reminder " + id
}

func NowReply(now time.Time) string {
	return "Current time: " + FormatTime(now)
}

// DefaultFiredTemplate is broadcast to every connected client when a
// reminder fires.
const DefaultFiredTemplate = "We are reminding you from this event: {{name}}"

func FiredMessage(r Reminder) string {
	return RenderFired(DefaultFiredTemplate, r)
}

// RenderFired replaces {{id}}, {{name}}, {{date}} and {{timestamp}} (epoch
// milliseconds) in tmpl. Substituted values are not expanded again.
func RenderFired(tmpl string, r Reminder) string {
	return strings.NewReplacer(
		"{{id}}", r.ID,
		"{{name}}", r.Name,
		"{{date}}", FormatTime(r.FireAt),
		"{{timestamp}}", strconv.FormatInt(r.FireAt.UnixMilli(), 10),
	).Replace(tmpl)
}

func ErrorReply(err error) string {
	if errors.Is(err, ErrUnknownCommand) {
		return UnknownCommandReply
	}
	return "Error: " + err.Error()
}
