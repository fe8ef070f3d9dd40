package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammedterryjack/private-ai-data/cmd/ingestctl/ui"
	"github.com/mohammedterryjack/private-ai-data/internal/progress"
)

const ingestTimeout = 10 * time.Minute

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Upload a file and watch it being processed",
}

var ingestImageCmd = &cobra.Command{
	Use:   "image <path>",
	Short: "Ingest an image (caption, OCR, keywords, embedding)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngestStream("/api/v1/ingest/images/stream", args[0])
	},
}

var ingestPDFCmd = &cobra.Command{
	Use:   "pdf <path>",
	Short: "Ingest a PDF document (text extraction, structuring, keywords, embedding)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngestStream("/api/v1/ingest/pdfs/stream", args[0])
	},
}

func init() {
	ingestCmd.AddCommand(ingestImageCmd)
	ingestCmd.AddCommand(ingestPDFCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestStream(endpoint, filePath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	spin := ui.NewSpinner("Uploading " + filePath + "...")
	spin.Start()

	var (
		bar       *ui.ProgressBar
		chunked   bool
		completed bool
		failure   string
	)

	err := uploadStream(ctx, endpoint, filePath, func(event progress.Event) error {
		// The first event means the server accepted the upload.
		if bar == nil {
			spin.Stop()
			bar = ui.NewProgressBar("Processing")
		}

		switch event.Type {
		case progress.EventProgress:
			if event.Chunk != "" {
				if ui.Verbose() {
					ui.Chunk(event.Chunk)
					chunked = true
				}
				bar.Set(event.Percent)
				break
			}
			endChunkLine(&chunked)
			bar.Describe(event.Stage)
			bar.Set(event.Percent)
		case progress.EventComplete:
			endChunkLine(&chunked)
			bar.Describe("Done")
			bar.Set(event.Percent)
			bar.Finish()
			completed = true
			printResult(event.Result)
		case progress.EventError:
			endChunkLine(&chunked)
			bar.Finish()
			failure = event.Detail
		}
		return nil
	})

	spin.Stop()
	if err != nil {
		return err
	}
	if failure != "" {
		ui.Error("Processing failed: %s", failure)
		return fmt.Errorf("processing failed: %s", failure)
	}
	if !completed {
		ui.Warning("Stream ended without a completion event")
		return fmt.Errorf("stream ended without a completion event")
	}

	ui.Success("Ingestion complete")
	return nil
}

// endChunkLine terminates a verbose chunk run so the next message starts clean.
func endChunkLine(chunked *bool) {
	if *chunked {
		ui.Newline()
		*chunked = false
	}
}

// printResult renders the completion payload as sorted key-value lines.
func printResult(result interface{}) {
	fields, ok := result.(map[string]interface{})
	if !ok {
		return
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ui.Newline()
	for _, key := range keys {
		ui.KeyValue(key, fields[key])
	}
	ui.Newline()
}
