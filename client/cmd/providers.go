package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stashgrid/relay/internal/client"
	"github.com/stashgrid/relay/internal/protocol"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the storage providers currently online",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := client.Dial(ctx, serverURL, log)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		updates := make(chan protocol.ProviderListUpdate, 1)
		c.OnProviderList(func(u protocol.ProviderListUpdate) {
			select {
			case updates <- u:
			default:
			}
		})

		if err := c.RequestProviders(); err != nil {
			return err
		}

		select {
		case update := <-updates:
			if len(update.Providers) == 0 {
				fmt.Println("no providers online")
				return nil
			}
			for _, p := range update.Providers {
				wallet := "no wallet"
				if p.HasWallet {
					wallet = p.ID
				}
				fmt.Printf("%-20s %-40s %s\n", p.Username, p.SocketID, wallet)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("no directory reply from %s", serverURL)
		}
	},
}
