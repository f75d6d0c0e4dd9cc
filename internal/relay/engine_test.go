package relay

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stashgrid/relay/internal/protocol"
	"github.com/stashgrid/relay/internal/registry"
)

var fanOutTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testProviders(connIDs ...string) []registry.Provider {
	providers := make([]registry.Provider, 0, len(connIDs))
	for _, id := range connIDs {
		providers = append(providers, registry.Provider{
			ConnID:         id,
			Username:       "provider-" + id,
			RoutingAddress: id,
		})
	}
	return providers
}

func TestPlanFanOutNoProviders(t *testing.T) {
	req := &protocol.SendFile{FileName: "a.txt", Cost: 1}

	_, _, err := planFanOut("sender", req, nil, fanOutTime)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("Expected ErrNoProviders, got %v", err)
	}
	if err.Error() != "no providers available" {
		t.Errorf("Expected message 'no providers available', got %q", err.Error())
	}
}

func TestPlanFanOutSelfExclusion(t *testing.T) {
	req := &protocol.SendFile{FileName: "a.txt", Cost: 1}

	_, _, err := planFanOut("p1", req, testProviders("p1"), fanOutTime)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("Expected ErrNoProviders when sender is the only provider, got %v", err)
	}

	deliveries, ack, err := planFanOut("p1", req, testProviders("p1", "p2"), fanOutTime)
	if err != nil {
		t.Fatalf("planFanOut failed: %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(deliveries))
	}
	if deliveries[0].ConnID != "p2" {
		t.Errorf("Expected delivery to p2, got %s", deliveries[0].ConnID)
	}
	if ack.RecipientCount != 1 {
		t.Errorf("Expected recipient count 1, got %d", ack.RecipientCount)
	}
	if len(ack.Recipients) != 1 || ack.Recipients[0] != "provider-p2" {
		t.Errorf("Expected recipients [provider-p2], got %v", ack.Recipients)
	}
}

func TestPlanFanOutCostConservation(t *testing.T) {
	const cost = 10.0
	providers := testProviders("p1", "p2", "p3")
	req := &protocol.SendFile{FileName: "a.txt", Cost: cost}

	deliveries, _, err := planFanOut("sender", req, providers, fanOutTime)
	if err != nil {
		t.Fatalf("planFanOut failed: %v", err)
	}

	var sum float64
	for _, d := range deliveries {
		sum += d.Msg.Payment
	}

	epsilon := float64(len(deliveries)) * 1e-12
	if math.Abs(sum-cost) > epsilon {
		t.Errorf("Expected payments to sum to %v within %v, got %v", cost, epsilon, sum)
	}
}

func TestPlanFanOutFilenameObfuscation(t *testing.T) {
	payload := []byte("identical bytes for everyone")
	req := &protocol.SendFile{
		FileData:         payload,
		FileName:         "staging-upload.tmp",
		OriginalFileName: "holiday.jpg",
		Cost:             2,
	}

	deliveries, _, err := planFanOut("sender", req, testProviders("a", "b"), fanOutTime)
	if err != nil {
		t.Fatalf("planFanOut failed: %v", err)
	}
	if len(deliveries) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(deliveries))
	}

	first, second := deliveries[0].Msg, deliveries[1].Msg
	if first.FileName == second.FileName {
		t.Errorf("Expected distinct relay filenames, both got %s", first.FileName)
	}
	if !bytes.Equal(first.FileData, second.FileData) {
		t.Error("Expected identical payload bytes for all recipients")
	}
	for _, d := range deliveries {
		want := d.ConnID + ".jpg"
		if d.Msg.FileName != want {
			t.Errorf("Expected relay filename %s, got %s", want, d.Msg.FileName)
		}
		if d.Msg.OriginalFileName != "holiday.jpg" {
			t.Errorf("Expected original filename preserved, got %s", d.Msg.OriginalFileName)
		}
	}
}

func TestPlanFanOutPrefersEncryptedPayload(t *testing.T) {
	req := &protocol.SendFile{
		FileData:      []byte("plain"),
		EncryptedData: []byte("ciphertext"),
		FileName:      "secret.dat",
		Cost:          1,
	}

	deliveries, _, err := planFanOut("sender", req, testProviders("p1"), fanOutTime)
	if err != nil {
		t.Fatalf("planFanOut failed: %v", err)
	}
	if !bytes.Equal(deliveries[0].Msg.FileData, []byte("ciphertext")) {
		t.Errorf("Expected encrypted payload to be relayed, got %s", deliveries[0].Msg.FileData)
	}
}

func TestPlanFanOutTimestamp(t *testing.T) {
	req := &protocol.SendFile{FileName: "a.txt", Cost: 1}

	deliveries, _, err := planFanOut("sender", req, testProviders("p1"), fanOutTime)
	if err != nil {
		t.Fatalf("planFanOut failed: %v", err)
	}
	if deliveries[0].Msg.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("Expected RFC3339 UTC timestamp, got %s", deliveries[0].Msg.Timestamp)
	}
}

func TestFileExtension(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"photo.jpg", "jpg"},
		{"archive.tar.gz", "gz"},
		{"no-extension", "bin"},
		{"trailing.", "bin"},
		{"", "bin"},
	}

	for _, c := range cases {
		if got := fileExtension(c.name); got != c.want {
			t.Errorf("fileExtension(%q): expected %q, got %q", c.name, c.want, got)
		}
	}
}
