package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/stashgrid/relay/internal/client"
	"github.com/stashgrid/relay/internal/protocol"
)

var cost float64

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Fan a file out to every online provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > protocol.MaxMessageSize {
			return fmt.Errorf("%s is larger than the %d byte relay limit", path, protocol.MaxMessageSize)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		bar := progressbar.DefaultBytes(info.Size(), "reading")
		var buf bytes.Buffer
		buf.Grow(int(info.Size()))
		if _, err := io.Copy(io.MultiWriter(&buf, bar), f); err != nil {
			return err
		}

		fileType := mime.TypeByExtension(filepath.Ext(path))
		if fileType == "" {
			fileType = "application/octet-stream"
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		c, err := client.Dial(ctx, serverURL, log)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		results := make(chan error, 1)
		c.OnUploadResult(func(ack *protocol.UploadSuccess, uploadErr *protocol.UploadError) {
			if uploadErr != nil {
				results <- fmt.Errorf("upload rejected: %s", uploadErr.Message)
				return
			}
			log.Infof("Delivered to %d providers: %v", ack.RecipientCount, ack.Recipients)
			results <- nil
		})

		if err := c.RegisterUser(username); err != nil {
			return err
		}

		name := filepath.Base(path)
		err = c.SendFile(&protocol.SendFile{
			FileData:         buf.Bytes(),
			FileName:         name,
			FileSize:         info.Size(),
			FileType:         fileType,
			SenderUsername:   username,
			Cost:             cost,
			OriginalFileName: name,
		})
		if err != nil {
			return err
		}

		select {
		case err := <-results:
			return err
		case <-ctx.Done():
			return fmt.Errorf("no upload reply from %s", serverURL)
		case <-c.Done():
			return fmt.Errorf("relay connection closed before the upload was acknowledged")
		}
	},
}

func init() {
	sendCmd.Flags().Float64Var(&cost, "cost", 0, "total price for the transfer, split across recipients")
}
