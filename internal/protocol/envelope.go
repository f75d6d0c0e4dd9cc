package protocol

import (
	"encoding/json"
	"fmt"
)

// MaxMessageSize is the largest envelope the relay accepts. Files travel
// as single in-memory blobs, so the limit must cover a whole upload.
const MaxMessageSize = 100 << 20

type EventType string

const (
	EventWelcome            EventType = "welcome"
	EventRegisterProvider   EventType = "register-provider"
	EventRegisterUser       EventType = "register-user"
	EventGetProviders       EventType = "get-providers"
	EventSendFile           EventType = "send-file"
	EventPaymentSent        EventType = "payment-sent"
	EventProviderListUpdate EventType = "provider-list-update"
	EventFileReceived       EventType = "file-received"
	EventPaymentReceived    EventType = "payment-received"
	EventUploadSuccess      EventType = "upload-success"
	EventUploadError        EventType = "upload-error"
)

// Envelope is the unit of transmission: one event name plus its payload,
// sent as a single websocket text message.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Wrap encodes a message into an envelope carrying its event type.
func Wrap(msg Message) (*Envelope, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Event(), err)
	}
	return &Envelope{Type: msg.Event(), Data: data}, nil
}

// MustWrap is Wrap for payloads built by the relay itself, where a
// marshal failure is a programming error.
func MustWrap(msg Message) *Envelope {
	env, err := Wrap(msg)
	if err != nil {
		panic(err)
	}
	return env
}

// Unwrap decodes the envelope's payload into the message type named by
// its event. Unknown events are returned as an error, not dropped, so
// callers can log them.
func (e *Envelope) Unwrap() (Message, error) {
	var msg Message
	switch e.Type {
	case EventWelcome:
		msg = &Welcome{}
	case EventRegisterProvider:
		msg = &RegisterProvider{}
	case EventRegisterUser:
		msg = &RegisterUser{}
	case EventGetProviders:
		msg = &GetProviders{}
	case EventSendFile:
		msg = &SendFile{}
	case EventPaymentSent:
		msg = &PaymentSent{}
	case EventProviderListUpdate:
		msg = &ProviderListUpdate{}
	case EventFileReceived:
		msg = &FileReceived{}
	case EventPaymentReceived:
		msg = &PaymentReceived{}
	case EventUploadSuccess:
		msg = &UploadSuccess{}
	case EventUploadError:
		msg = &UploadError{}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}

	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, msg); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", e.Type, err)
		}
	}
	return msg, nil
}

// Decode decodes the payload into a caller-supplied struct, for clients
// that only care about a subset of fields.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}
