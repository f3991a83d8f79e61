package scan

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// BuildPDF combines the submission's page images into one PDF under
// mediaDir, one page per image in submission order, and returns its path.
// workDir receives the intermediate page files and is the caller's to
// clean up.
func BuildPDF(pages []image.Image, workDir, mediaDir, baseName string) (string, error) {
	if len(pages) == 0 {
		return "", fmt.Errorf("no pages to combine")
	}
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	files := make([]string, len(pages))
	for i, page := range pages {
		path := filepath.Join(workDir, fmt.Sprintf("page_%03d.png", i+1))
		if err := imaging.Save(page, path); err != nil {
			return "", fmt.Errorf("write page %d: %w", i+1, err)
		}
		files[i] = path
	}

	pdfPath := filepath.Join(mediaDir, baseName+".pdf")
	if err := api.ImportImagesFile(files, pdfPath, nil, nil); err != nil {
		return "", fmt.Errorf("build pdf: %w", err)
	}

	info, err := os.Stat(pdfPath)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("pdf artifact missing or empty: %s", pdfPath)
	}
	return pdfPath, nil
}
