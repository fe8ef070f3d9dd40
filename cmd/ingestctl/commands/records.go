package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammedterryjack/private-ai-data/cmd/ingestctl/ui"
	"github.com/mohammedterryjack/private-ai-data/internal/storage"
)

const recordsTimeout = 30 * time.Second

var (
	listLimit  int
	listOffset int
	outputPath string
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Inspect and manage stored image records",
}

var imagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored images, newest first",
	RunE:  runImagesList,
}

var imagesShowCmd = &cobra.Command{
	Use:   "show <uuid>",
	Short: "Show a stored image record",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesShow,
}

var imagesDeleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Delete a stored image and its derived records",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesDelete,
}

var pdfsCmd = &cobra.Command{
	Use:   "pdfs",
	Short: "Inspect and manage stored PDF documents",
}

var pdfsDownloadCmd = &cobra.Command{
	Use:   "download <uuid>",
	Short: "Download the original uploaded PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runPDFsDownload,
}

func init() {
	imagesListCmd.Flags().IntVar(&listLimit, "limit", 100, "maximum number of records to return")
	imagesListCmd.Flags().IntVar(&listOffset, "offset", 0, "number of records to skip")
	pdfsDownloadCmd.Flags().StringVarP(&outputPath, "output", "o", "", "destination path (defaults to <uuid>.pdf)")

	imagesCmd.AddCommand(imagesListCmd)
	imagesCmd.AddCommand(imagesShowCmd)
	imagesCmd.AddCommand(imagesDeleteCmd)
	pdfsCmd.AddCommand(pdfsDownloadCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(pdfsCmd)
}

func runImagesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordsTimeout)
	defer cancel()

	var resp struct {
		Images []storage.ImageSummary `json:"images"`
		Count  int                    `json:"count"`
	}
	path := fmt.Sprintf("/api/v1/records/images?limit=%d&offset=%d", listLimit, listOffset)
	if err := getJSON(ctx, path, &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		ui.Info("No images stored")
		return nil
	}

	rows := make([][]string, 0, len(resp.Images))
	for _, image := range resp.Images {
		rows = append(rows, []string{
			image.ID.String(),
			image.CreatedAt.Format(time.RFC3339),
			image.UpdatedAt.Format(time.RFC3339),
		})
	}
	ui.Table([]string{"UUID", "CREATED", "UPDATED"}, rows)
	ui.Newline()
	ui.Info("%d image(s)", resp.Count)
	return nil
}

func runImagesShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordsTimeout)
	defer cancel()

	var view storage.ImageView
	if err := getJSON(ctx, "/api/v1/records/images/"+args[0], &view); err != nil {
		return err
	}

	ui.KeyValue("uuid", view.ID)
	ui.KeyValue("caption", view.Caption)
	ui.KeyValue("keywords", strings.Join(view.Keywords, ", "))
	ui.KeyValue("image bytes (base64)", len(view.ImageData))
	ui.KeyValue("created", view.CreatedAt.Format(time.RFC3339))
	ui.KeyValue("updated", view.UpdatedAt.Format(time.RFC3339))
	return nil
}

func runImagesDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordsTimeout)
	defer cancel()

	if err := deleteJSON(ctx, "/api/v1/records/images/"+args[0]); err != nil {
		return err
	}
	ui.Success("Deleted image %s", args[0])
	return nil
}

func runPDFsDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), recordsTimeout)
	defer cancel()

	destination := outputPath
	if destination == "" {
		destination = args[0] + ".pdf"
	}

	written, err := downloadFile(ctx, "/api/v1/records/pdfs/"+args[0]+"/file", destination)
	if err != nil {
		return err
	}
	ui.Success("Saved %s (%d bytes)", destination, written)
	return nil
}
