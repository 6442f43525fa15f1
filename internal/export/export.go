package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"tienda/internal/domain"
)

var csvHeader = []string{"id", "sku", "name", "category", "supplier", "price", "stock"}

// ProductsCSV writes one header row and one row per product. Absent references are empty.
func ProductsCSV(w io.Writer, products []domain.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range products {
		row := []string{
			strconv.FormatInt(p.ID, 10),
			p.SKU.String,
			p.Name,
			p.CategoryName.String,
			p.SupplierName.String,
			p.Price.StringFixed(2),
			strconv.Itoa(p.Stock),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PDFLine is the text printed for one product.
func PDFLine(p domain.Product) string {
	return fmt.Sprintf("%d - %s - %s - Stock: %d", p.ID, p.Name, p.Price.StringFixed(2), p.Stock)
}

// ProductsPDF renders a titled A4 listing; fpdf breaks pages as needed.
func ProductsPDF(w io.Writer, products []domain.Product) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Product list", true)
	pdf.SetMargins(40, 40, 40)
	pdf.SetAutoPageBreak(true, 40)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 24, "Product list", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	for _, p := range products {
		pdf.CellFormat(0, 16, tr(PDFLine(p)), "", 1, "L", false, 0, "")
	}
	return pdf.Output(w)
}
