package protocol

import (
	"encoding/json"
	"fmt"
)

// jsonRPCVersion is the only protocol version accepted on the wire.
const jsonRPCVersion = "2.0"

// MessageKind identifies which JSON-RPC variant a Message holds.
type MessageKind int

const (
	KindRequest MessageKind = iota
	KindNotification
	KindResponse
)

// String makes MessageKind satisfy the fmt.Stringer interface.
func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// RPCError is the error object carried by an error response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error makes RPCError satisfy the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Message is a single JSON-RPC message. The variant is derived from field
// presence: a method with an id is a request, a method without an id is a
// notification, and everything else is a response. ID is a pointer so that
// "no id" and "id 0" stay distinguishable.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Kind reports which variant of the union this message is.
func (m Message) Kind() MessageKind {
	if m.Method != "" {
		if m.ID != nil {
			return KindRequest
		}
		return KindNotification
	}
	return KindResponse
}

// NewRequest builds a request message with the given id, marshaling params
// into the message. A nil params produces a request without a params field.
func NewRequest(id int64, method string, params interface{}) (Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal params for %q: %w", method, err)
	}
	return Message{
		JSONRPC: jsonRPCVersion,
		ID:      &id,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds a notification message (no id, no response expected).
func NewNotification(method string, params interface{}) (Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal params for %q: %w", method, err)
	}
	return Message{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// Encode serializes the message as a single newline-terminated JSON document.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseMessage decodes one line of server output into a Message.
func ParseMessage(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed json-rpc message: %w", err)
	}
	if msg.JSONRPC != jsonRPCVersion {
		return Message{}, fmt.Errorf("unexpected jsonrpc version %q", msg.JSONRPC)
	}
	return msg, nil
}

// Tool describes a single callable tool reported by a server's tools/list.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ServerInfo identifies the server implementation, as reported in the
// initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
