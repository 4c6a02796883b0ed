package server

import (
	"strings"

	"github.com/tidwall/gjson"
)

// sseEvent is one parsed server-sent event: the event label and its JSON
// payload. Lives only for the duration of a single request.
type sseEvent struct {
	Event string
	Data  gjson.Result
}

// parseSSEStream splits an SSE byte stream into typed events. Parsing fails
// soft: blank lines separate events, data lines that are not valid JSON are
// dropped, and an event label persists until the next event: line. A stream
// that never labels its events gets the protocol default "message".
func parseSSEStream(text string) []sseEvent {
	events := make([]sseEvent, 0, 16)
	current := "message"

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "event:"); ok {
			label := strings.TrimSpace(rest)
			if label == "" {
				label = "message"
			}
			current = label
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			payload := strings.TrimSpace(rest)
			if !gjson.Valid(payload) {
				continue
			}
			events = append(events, sseEvent{Event: current, Data: gjson.Parse(payload)})
		}
	}

	return events
}

// aggregatedResult is the fold of an event stream for a non-streaming
// caller. completed and errObj hold raw JSON or "" when absent.
type aggregatedResult struct {
	completed  string
	errObj     string
	outputText string
	eventCount int
}

// aggregateSSE folds parsed events into a terminal result. Later terminal
// events win over earlier ones; a response.failed surfaces its embedded error
// only when no explicit error event was seen.
func aggregateSSE(events []sseEvent) aggregatedResult {
	var res aggregatedResult
	var text strings.Builder

	for _, e := range events {
		res.eventCount++

		// Codex streams label events via event: lines, but some gateways only
		// tag the payload's type field. Prefer the label, fall back to type.
		kind := e.Event
		if kind == "message" {
			if t := e.Data.Get("type").String(); t != "" {
				kind = t
			}
		}

		switch kind {
		case "error":
			if obj := e.Data.Get("error"); obj.IsObject() {
				res.errObj = obj.Raw
			}
		case "response.output_text.delta":
			if delta := e.Data.Get("delta"); delta.Type == gjson.String {
				text.WriteString(delta.String())
			}
		case "response.output_text.done":
			if full := e.Data.Get("text"); full.Type == gjson.String && text.Len() == 0 {
				text.WriteString(full.String())
			}
		case "response.completed":
			if obj := e.Data.Get("response"); obj.IsObject() {
				res.completed = obj.Raw
			}
		case "response.failed":
			if obj := e.Data.Get("response"); obj.IsObject() {
				res.completed = obj.Raw
				if res.errObj == "" {
					if embedded := obj.Get("error"); embedded.IsObject() {
						res.errObj = embedded.Raw
					}
				}
			}
		}
	}

	res.outputText = text.String()
	return res
}
