package ws

import "encoding/json"

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgUploadProcessed MessageType = "upload_processed"
	MsgQueryExecuted   MessageType = "query_executed"
	MsgReportReady     MessageType = "report_ready"
	MsgError           MessageType = "error"
	MsgStatus          MessageType = "status"

	// Sent by clients.
	MsgSync      MessageType = "sync"
	MsgSubscribe MessageType = "subscribe"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribePayload limits a client to the events of one chat. An empty
// chatId subscribes to every chat again.
type SubscribePayload struct {
	ChatID string `json:"chatId"`
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(typ MessageType, payload any) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Message{Type: typ, Payload: p})
}
