package journal

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Transfer is one completed fan-out, recorded after the sender ack.
type Transfer struct {
	ID             uint `gorm:"primaryKey"`
	SenderUsername string
	FileName       string
	FileSize       int64
	Cost           float64
	RecipientCount int
	CreatedAt      int64
}

// Payout is the per-recipient share of a transfer's declared cost.
// External marks routing addresses usable by settlement; payouts against
// a transient connection id are bookkeeping only.
type Payout struct {
	ID             uint     `gorm:"primaryKey"`
	TransferID     uint     `gorm:"not null;foreignKey:TransferID;constraint:OnDelete:CASCADE"`
	Transfer       Transfer `gorm:"constraint:OnDelete:CASCADE"`
	Username       string
	RoutingAddress string
	Amount         float64
	External       bool
}

// Journal is an append-only record of relayed transfers. The relay's
// in-memory state stays authoritative; losing the journal loses history,
// not correctness.
type Journal struct {
	DB *gorm.DB
}

func Open(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(&Transfer{}, &Payout{}); err != nil {
		return nil, err
	}
	return &Journal{DB: db}, nil
}

// PayoutEntry is one recipient's share as seen by the relay engine.
type PayoutEntry struct {
	Username       string
	RoutingAddress string
	Amount         float64
	External       bool
}

// RecordTransfer writes a transfer and its payouts in one transaction.
func (j *Journal) RecordTransfer(sender, fileName string, fileSize int64, cost float64, payouts []PayoutEntry) error {
	return j.DB.Transaction(func(tx *gorm.DB) error {
		transfer := Transfer{
			SenderUsername: sender,
			FileName:       fileName,
			FileSize:       fileSize,
			Cost:           cost,
			RecipientCount: len(payouts),
			CreatedAt:      time.Now().Unix(),
		}
		if err := tx.Create(&transfer).Error; err != nil {
			return err
		}

		for _, p := range payouts {
			payout := Payout{
				TransferID:     transfer.ID,
				Username:       p.Username,
				RoutingAddress: p.RoutingAddress,
				Amount:         p.Amount,
				External:       p.External,
			}
			if err := tx.Create(&payout).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *Journal) Transfers() ([]Transfer, error) {
	var transfers []Transfer
	err := j.DB.Find(&transfers).Error
	return transfers, err
}

func (j *Journal) PayoutsFor(transferID uint) ([]Payout, error) {
	var payouts []Payout
	err := j.DB.Where("transfer_id = ?", transferID).Find(&payouts).Error
	return payouts, err
}

func (j *Journal) Close() error {
	sqlDB, err := j.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
