package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus/internal/core/domain"
)

var uploadPreview bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Add documents to the library",
	Long: `Stores files for the next sync. Each file is checked for size, format and
content; a file whose bytes are already in the library is reported as a
duplicate and not stored again.

Use --preview to extract and show the text of a file without storing it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadPreview, "preview", false, "show extracted text without storing")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	var failed int
	for _, path := range args {
		req, err := readUploadRequest(path)
		if err != nil {
			cmd.Printf("%s %s: %v\n", failText("error"), path, err)
			failed++
			continue
		}

		if uploadPreview {
			if err := previewFile(cmd, req); err != nil {
				cmd.Printf("%s %s: %v\n", failText("error"), path, err)
				failed++
			}
			continue
		}

		result, err := uploadService.Upload(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", path, err)
		}
		if !printUploadResult(cmd, req.Filename, result) {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files not uploaded", failed, len(args))
	}
	return nil
}

func readUploadRequest(path string) (domain.UploadRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.UploadRequest{}, err
	}
	name := filepath.Base(path)
	return domain.UploadRequest{
		Filename:  name,
		MediaType: mime.TypeByExtension(filepath.Ext(name)),
		Content:   content,
	}, nil
}

// printUploadResult reports one upload and returns false for a rejection.
func printUploadResult(cmd *cobra.Command, name string, result domain.UploadResult) bool {
	switch result.Outcome {
	case domain.UploadAccepted:
		cmd.Printf("%s %s (%s, id %s)\n", okText("added"), name, result.Variant, result.DocumentID)
	case domain.UploadDuplicate:
		cmd.Printf("%s %s already in library (id %s)\n", warnText("duplicate"), name, result.DocumentID)
	default:
		cmd.Printf("%s %s: %s\n", failText("rejected"), name, result.Reason)
		return false
	}
	return true
}

func previewFile(cmd *cobra.Command, req domain.UploadRequest) error {
	preview, err := uploadService.Preview(cmd.Context(), req)
	if err != nil {
		return err
	}
	cmd.Printf("%s (%s, %d characters)\n", preview.Filename, preview.Variant, preview.TextLength)
	cmd.Println(dimText("----"))
	cmd.Println(preview.Preview)
	if preview.TextLength > len([]rune(preview.Preview)) {
		cmd.Println(dimText("..."))
	}
	return nil
}
