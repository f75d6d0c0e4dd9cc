package journal

import (
	"path/filepath"
	"testing"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "journal.sqlite3"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordTransfer(t *testing.T) {
	j := openTestJournal(t)

	payouts := []PayoutEntry{
		{Username: "p1", RoutingAddress: "0xabc", Amount: 0.5, External: true},
		{Username: "p2", RoutingAddress: "conn-2", Amount: 0.5, External: false},
	}
	if err := j.RecordTransfer("alice", "photo.png", 2048, 1.0, payouts); err != nil {
		t.Fatalf("RecordTransfer failed: %v", err)
	}

	transfers, err := j.Transfers()
	if err != nil {
		t.Fatalf("Transfers failed: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("Expected 1 transfer, got %d", len(transfers))
	}

	tr := transfers[0]
	if tr.SenderUsername != "alice" {
		t.Errorf("Expected sender alice, got %s", tr.SenderUsername)
	}
	if tr.RecipientCount != 2 {
		t.Errorf("Expected 2 recipients, got %d", tr.RecipientCount)
	}

	rows, err := j.PayoutsFor(tr.ID)
	if err != nil {
		t.Fatalf("PayoutsFor failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 payouts, got %d", len(rows))
	}

	external := 0
	for _, p := range rows {
		if p.External {
			external++
		}
	}
	if external != 1 {
		t.Errorf("Expected exactly 1 external payout, got %d", external)
	}
}

func TestTransfersEmpty(t *testing.T) {
	j := openTestJournal(t)

	transfers, err := j.Transfers()
	if err != nil {
		t.Fatalf("Transfers failed: %v", err)
	}
	if len(transfers) != 0 {
		t.Errorf("Expected empty journal, got %d transfers", len(transfers))
	}
}
