package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stashgrid/relay/internal/client"
	"github.com/stashgrid/relay/internal/protocol"
)

var (
	walletAddress string
	outDir        string
)

var provideCmd = &cobra.Command{
	Use:   "provide",
	Short: "Register as a storage provider and store relayed files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}

		c, err := client.Dial(context.Background(), serverURL, log)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		c.OnFileReceived(func(f protocol.FileReceived) {
			path := filepath.Join(outDir, filepath.Base(f.FileName))
			if err := os.WriteFile(path, f.FileData, 0o644); err != nil {
				log.Errorf("Storing %s failed: %v", f.FileName, err)
				return
			}
			log.Infof("Stored %s (%d bytes) from %s, payment %.6f", path, len(f.FileData), f.SenderUsername, f.Payment)
		})
		c.OnPaymentReceived(func(p protocol.PaymentReceived) {
			log.Infof("Payment received: %.6f", p.Amount)
		})

		if err := c.RegisterProvider(username, walletAddress); err != nil {
			return err
		}
		if walletAddress == "" {
			log.Warn("No wallet address: settlements will be skipped for this provider")
		}
		log.Infof("Providing storage as %s (%s), files go to %s", username, c.ID(), outDir)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("exiting...")
		case <-c.Done():
			log.Warn("Relay connection closed")
		}
		return nil
	},
}

func init() {
	provideCmd.Flags().StringVar(&walletAddress, "wallet", "", "wallet address for settlements")
	provideCmd.Flags().StringVar(&outDir, "out", "received", "directory for relayed files")
}
