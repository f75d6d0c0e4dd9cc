package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWrapUnwrapSendFile(t *testing.T) {
	payload := []byte("some file bytes for the relay")

	env, err := Wrap(&SendFile{
		FileData:       payload,
		FileName:       "report.pdf",
		FileSize:       int64(len(payload)),
		FileType:       "application/pdf",
		SenderUsername: "alice",
		Cost:           1.5,
	})
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	if env.Type != EventSendFile {
		t.Errorf("Expected event %q, got %q", EventSendFile, env.Type)
	}

	msg, err := env.Unwrap()
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}

	sf, ok := msg.(*SendFile)
	if !ok {
		t.Fatalf("Expected *SendFile, got %T", msg)
	}

	if !bytes.Equal(sf.FileData, payload) {
		t.Errorf("File data mismatch")
	}
	if sf.Cost != 1.5 {
		t.Errorf("Expected cost 1.5, got %v", sf.Cost)
	}
}

func TestUnwrapUnknownEvent(t *testing.T) {
	env := &Envelope{Type: "self-destruct"}

	if _, err := env.Unwrap(); err == nil {
		t.Error("Expected error for unknown event type")
	}
}

func TestUnwrapEmptyPayload(t *testing.T) {
	env := &Envelope{Type: EventGetProviders}

	msg, err := env.Unwrap()
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}

	if _, ok := msg.(*GetProviders); !ok {
		t.Errorf("Expected *GetProviders, got %T", msg)
	}
}

func TestEnvelopeWireFieldNames(t *testing.T) {
	env := MustWrap(&RegisterProvider{Username: "bob", WalletAddress: "0xabc"})

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	var data map[string]string
	if err := json.Unmarshal(decoded["data"], &data); err != nil {
		t.Fatalf("Unmarshal data failed: %v", err)
	}

	if data["username"] != "bob" {
		t.Errorf("Expected username field on the wire, got %v", data)
	}
	if data["walletAddress"] != "0xabc" {
		t.Errorf("Expected walletAddress field on the wire, got %v", data)
	}
}

func TestRegisterProviderOmitsEmptyWallet(t *testing.T) {
	env := MustWrap(&RegisterProvider{Username: "carol"})

	if bytes.Contains(env.Data, []byte("walletAddress")) {
		t.Errorf("Expected walletAddress to be omitted when empty, got %s", env.Data)
	}
}
