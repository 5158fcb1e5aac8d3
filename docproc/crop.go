package docproc

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// CropHeadersFooters writes a copy of the PDF with top and bottom page
// margins cropped away, so running headers and footers do not leak into
// the extracted text. Margins are in points (1 pt = 1/72 inch).
func CropHeadersFooters(inPath, outPath string, topPt, bottomPt float64) error {
	if topPt <= 0 && bottomPt <= 0 {
		return fmt.Errorf("crop margins must be positive")
	}

	conf := api.LoadConfiguration()

	// Margin box: top right bottom left.
	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", topPt, bottomPt), types.POINTS)
	if err != nil {
		return fmt.Errorf("parsing crop box: %w", err)
	}

	if err := api.CropFile(inPath, outPath, []string{"1-"}, box, conf); err != nil {
		return fmt.Errorf("cropping %s: %w", inPath, err)
	}
	return nil
}
