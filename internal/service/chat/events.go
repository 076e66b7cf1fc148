package chat

import "diabuddy/internal/models"

// Event names emitted during one streaming chat cycle, in protocol order.
const (
	EventUserMessage     = "user_message"
	EventAIResponseStart = "ai_response_start"
	EventAIMessageChunk  = "ai_message_chunk"
	EventAIResponseEnd   = "ai_response_end"
	EventError           = "error"
)

// Event is one observable step of a streaming cycle. Data is nil for the
// terminal success marker.
type Event struct {
	Name string
	Data any
}

// EmitFunc delivers an event to the client. A non-nil error means the client
// is gone; the cycle stops emitting and commits nothing.
type EmitFunc func(Event) error

// ChunkData carries one generated segment of the AI message.
type ChunkData struct {
	MessageID string `json:"message_id"`
	Chunk     string `json:"chunk"`
}

// ErrorData is the payload of a terminal error event.
type ErrorData struct {
	Message string `json:"message"`
}

func userMessageEvent(msg *models.ChatMessage) Event {
	return Event{Name: EventUserMessage, Data: msg}
}

func responseStartEvent(msg *models.ChatMessage) Event {
	return Event{Name: EventAIResponseStart, Data: msg}
}

func chunkEvent(messageID, chunk string) Event {
	return Event{Name: EventAIMessageChunk, Data: ChunkData{MessageID: messageID, Chunk: chunk}}
}

func responseEndEvent() Event {
	return Event{Name: EventAIResponseEnd}
}

func errorEvent(message string) Event {
	return Event{Name: EventError, Data: ErrorData{Message: message}}
}
