// Package stream provides the typed event union and the push-stream session
// used to deliver progress to a client before a final answer exists.
//
// Events are a closed set: every variant is a struct in this file carrying a
// "type" discriminator, and Marshal matches exhaustively. The wire format is
// one SSE frame per event (`data: <json>\n\n`) with a literal `data: [DONE]`
// frame terminating the stream.
package stream

import (
	"encoding/json"
	"fmt"
)

// Type identifies an event variant.
type Type string

// The closed set of event types.
const (
	TypeInit          Type = "init"
	TypeThinking      Type = "thinking"
	TypeText          Type = "text"
	TypeResult        Type = "result"
	TypeVisualization Type = "visualization"
	TypeDraftInit     Type = "draft_init"
	TypeDraftUpdate   Type = "draft_update"
	TypeDraftComplete Type = "draft_complete"
	TypeError         Type = "error"
	TypeDone          Type = "done"
)

// Event is the sealed union of stream event variants. Only types in this
// package implement it.
type Event interface {
	eventType() Type
}

// InitEvent announces the start of a streaming interaction.
type InitEvent struct {
	Type Type   `json:"type"` // always TypeInit
	Info string `json:"info"`
}

// ThinkingEvent carries intermediate reasoning text from an agent task.
type ThinkingEvent struct {
	Type     Type   `json:"type"` // always TypeThinking
	Thinking string `json:"thinking"`
}

// TextEvent carries incremental response text from an agent task.
type TextEvent struct {
	Type Type   `json:"type"` // always TypeText
	Text string `json:"text"`
}

// ResultEvent carries the validated combined result after the join.
type ResultEvent struct {
	Type  Type   `json:"type"` // always TypeResult
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// VisualizationEvent carries a chart/visualization spec for the client.
type VisualizationEvent struct {
	Type Type           `json:"type"` // always TypeVisualization
	Spec map[string]any `json:"spec"`
}

// DraftInitEvent carries the initial (usually empty) draft document.
type DraftInitEvent struct {
	Type  Type `json:"type"` // always TypeDraftInit
	Draft any  `json:"draft"`
}

// DraftUpdateEvent carries one applied draft mutation. The delta fields are
// flattened next to "action" on the wire so a client can replay the sequence
// to reconstruct the full document.
type DraftUpdateEvent struct {
	Type   Type           `json:"type"` // always TypeDraftUpdate
	Action string         `json:"action"`
	Delta  map[string]any `json:"-"`
}

// MarshalJSON flattens Delta into the top-level object.
func (e DraftUpdateEvent) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Delta)+2)
	for k, v := range e.Delta {
		obj[k] = v
	}
	obj["type"] = TypeDraftUpdate
	obj["action"] = e.Action
	return json.Marshal(obj)
}

// DraftCompleteEvent marks the draft as finalized.
type DraftCompleteEvent struct {
	Type    Type   `json:"type"` // always TypeDraftComplete
	Message string `json:"message,omitempty"`
}

// ErrorEvent reports a terminal failure to the client.
type ErrorEvent struct {
	Type  Type   `json:"type"` // always TypeError
	Error string `json:"error"`
}

// DoneEvent is the terminal sentinel on the normal completion path.
type DoneEvent struct {
	Type Type `json:"type"` // always TypeDone
}

func (InitEvent) eventType() Type          { return TypeInit }
func (ThinkingEvent) eventType() Type      { return TypeThinking }
func (TextEvent) eventType() Type          { return TypeText }
func (ResultEvent) eventType() Type        { return TypeResult }
func (VisualizationEvent) eventType() Type { return TypeVisualization }
func (DraftInitEvent) eventType() Type     { return TypeDraftInit }
func (DraftUpdateEvent) eventType() Type   { return TypeDraftUpdate }
func (DraftCompleteEvent) eventType() Type { return TypeDraftComplete }
func (ErrorEvent) eventType() Type         { return TypeError }
func (DoneEvent) eventType() Type          { return TypeDone }

// Constructors fill in the discriminator so callers can't forget it.

func NewInit(info string) InitEvent         { return InitEvent{Type: TypeInit, Info: info} }
func NewThinking(text string) ThinkingEvent { return ThinkingEvent{Type: TypeThinking, Thinking: text} }
func NewText(text string) TextEvent         { return TextEvent{Type: TypeText, Text: text} }

func NewResult(text string, final bool) ResultEvent {
	return ResultEvent{Type: TypeResult, Text: text, Final: final}
}

func NewVisualization(spec map[string]any) VisualizationEvent {
	return VisualizationEvent{Type: TypeVisualization, Spec: spec}
}

func NewDraftInit(draft any) DraftInitEvent {
	return DraftInitEvent{Type: TypeDraftInit, Draft: draft}
}

func NewDraftUpdate(action string, delta map[string]any) DraftUpdateEvent {
	return DraftUpdateEvent{Type: TypeDraftUpdate, Action: action, Delta: delta}
}

func NewDraftComplete(message string) DraftCompleteEvent {
	return DraftCompleteEvent{Type: TypeDraftComplete, Message: message}
}

func NewError(msg string) ErrorEvent { return ErrorEvent{Type: TypeError, Error: msg} }
func NewDone() DoneEvent             { return DoneEvent{Type: TypeDone} }

// Marshal serializes an event for the wire. The type switch is exhaustive
// over the sealed union; an unknown implementation is a programming error.
func Marshal(e Event) ([]byte, error) {
	switch ev := e.(type) {
	case InitEvent, ThinkingEvent, TextEvent, ResultEvent, VisualizationEvent,
		DraftInitEvent, DraftUpdateEvent, DraftCompleteEvent, ErrorEvent, DoneEvent:
		return json.Marshal(ev)
	default:
		return nil, fmt.Errorf("unknown stream event type %T", e)
	}
}
