package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	username  string
	verbose   bool
)

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:  `relay`,
	Long: `relay is a client for the file relay network: offer storage as a provider or fan a file out to every provider`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://localhost:3001", "relay server url")
	rootCmd.PersistentFlags().StringVar(&username, "name", "anonymous", "display name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(provideCmd)
	rootCmd.AddCommand(sendCmd)
}
