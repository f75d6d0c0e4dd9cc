package relay

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/stashgrid/relay/internal/protocol"
	"github.com/stashgrid/relay/internal/registry"
)

// ErrNoProviders is reported to the sender when the recipient set is
// empty after self-exclusion.
var ErrNoProviders = errors.New("no providers available")

// delivery is one planned push to a provider, carrying the routing
// details the journal needs alongside the wire message.
type delivery struct {
	ConnID         string
	Username       string
	RoutingAddress string
	External       bool
	Msg            *protocol.FileReceived
}

// planFanOut resolves one transfer against a directory snapshot: it
// excludes the sender, splits the declared cost evenly and builds the
// per-recipient messages. The cost share is plain float64 division; the
// shares sum to the declared cost only up to floating-point rounding and
// no remainder is carried to any recipient.
//
// Each recipient gets the same bytes under a name derived from its own
// connection id, so no two recipients see the same literal filename.
func planFanOut(senderConnID string, req *protocol.SendFile, providers []registry.Provider, now time.Time) ([]delivery, *protocol.UploadSuccess, error) {
	recipients := make([]registry.Provider, 0, len(providers))
	for _, p := range providers {
		if p.ConnID == senderConnID {
			continue
		}
		recipients = append(recipients, p)
	}

	if len(recipients) == 0 {
		return nil, nil, ErrNoProviders
	}

	share := req.Cost / float64(len(recipients))

	payload := req.FileData
	if len(req.EncryptedData) > 0 {
		payload = req.EncryptedData
	}

	original := req.OriginalFileName
	if original == "" {
		original = req.FileName
	}
	ext := fileExtension(original)
	timestamp := now.UTC().Format(time.RFC3339)

	deliveries := make([]delivery, 0, len(recipients))
	recipientNames := make([]string, 0, len(recipients))
	for _, r := range recipients {
		deliveries = append(deliveries, delivery{
			ConnID:         r.ConnID,
			Username:       r.Username,
			RoutingAddress: r.RoutingAddress,
			External:       r.HasWallet,
			Msg: &protocol.FileReceived{
				FileData:         payload,
				FileName:         r.ConnID + "." + ext,
				FileSize:         req.FileSize,
				FileType:         req.FileType,
				SenderUsername:   req.SenderUsername,
				Payment:          share,
				Timestamp:        timestamp,
				OriginalFileName: original,
			},
		})
		recipientNames = append(recipientNames, r.Username)
	}

	ack := &protocol.UploadSuccess{
		RecipientCount: len(deliveries),
		Recipients:     recipientNames,
	}
	return deliveries, ack, nil
}

func fileExtension(name string) string {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}
