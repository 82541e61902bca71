package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// A4 layout in millimetres
const (
	pdfMargin       = 15.0
	pdfBottomMargin = 20.0
	pdfTitleBand    = 28.0
	pdfLineHeight   = 5.5
	pdfFontSize     = 10.0
)

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	y      float64
	width  float64
	height float64
}

// ensure adds a page when h more millimetres would cross the bottom margin.
func (w *pdfWriter) ensure(h float64) {
	if w.y+h > w.height-pdfBottomMargin {
		w.pdf.AddPage()
		w.y = pdfMargin
	}
}

func (w *pdfWriter) contentWidth() float64 {
	return w.width - 2*pdfMargin
}

// lines writes wrapped text at indent, breaking pages line by line.
func (w *pdfWriter) lines(text string, indent float64, style string, size float64) {
	w.pdf.SetFont("Helvetica", style, size)
	lh := size * 0.55
	for _, l := range w.pdf.SplitText(w.tr(text), w.contentWidth()-indent) {
		w.ensure(lh)
		w.pdf.SetXY(pdfMargin+indent, w.y)
		w.pdf.CellFormat(w.contentWidth()-indent, lh, l, "", 0, "L", false, 0, "")
		w.y += lh
	}
}

func (w *pdfWriter) gap(h float64) {
	w.y += h
}

func (w *pdfWriter) titleBand(title, subtitle string) {
	w.pdf.SetFillColor(37, 99, 235)
	w.pdf.Rect(0, 0, w.width, pdfTitleBand+pdfMargin, "F")
	w.pdf.SetTextColor(255, 255, 255)
	w.pdf.SetFont("Helvetica", "B", 18)
	w.pdf.SetXY(pdfMargin, pdfMargin)
	w.pdf.CellFormat(w.contentWidth(), 10, w.tr(title), "", 0, "L", false, 0, "")
	if subtitle != "" {
		w.pdf.SetFont("Helvetica", "", 12)
		w.pdf.SetXY(pdfMargin, pdfMargin+12)
		w.pdf.CellFormat(w.contentWidth(), 8, w.tr(subtitle), "", 0, "L", false, 0, "")
	}
	w.pdf.SetTextColor(17, 24, 39)
	w.y = pdfTitleBand + pdfMargin + 8
}

func (w *pdfWriter) heading(text string, size float64) {
	// Keep the heading with at least two lines of what follows.
	w.ensure(size*0.6 + 2*pdfLineHeight)
	w.gap(2)
	w.lines(text, 0, "B", size)
	if size >= 13 {
		w.pdf.SetDrawColor(209, 213, 219)
		w.pdf.Line(pdfMargin, w.y+0.5, w.width-pdfMargin, w.y+0.5)
	}
	w.gap(2)
}

func (w *pdfWriter) keyValues(pairs []KeyValue) {
	w.pdf.SetFont("Helvetica", "B", pdfFontSize)
	keyWidth := 0.0
	for _, kv := range pairs {
		keyWidth = max(keyWidth, w.pdf.GetStringWidth(w.tr(kv.Key+":")))
	}
	keyWidth = min(keyWidth+3, w.contentWidth()/2)

	for _, kv := range pairs {
		w.pdf.SetFont("Helvetica", "", pdfFontSize)
		values := w.pdf.SplitText(w.tr(kv.Value), w.contentWidth()-keyWidth)
		for i, v := range values {
			w.ensure(pdfLineHeight)
			if i == 0 {
				w.pdf.SetFont("Helvetica", "B", pdfFontSize)
				w.pdf.SetXY(pdfMargin, w.y)
				w.pdf.CellFormat(keyWidth, pdfLineHeight, w.tr(kv.Key+":"), "", 0, "L", false, 0, "")
				w.pdf.SetFont("Helvetica", "", pdfFontSize)
			}
			w.pdf.SetXY(pdfMargin+keyWidth, w.y)
			w.pdf.CellFormat(w.contentWidth()-keyWidth, pdfLineHeight, v, "", 0, "L", false, 0, "")
			w.y += pdfLineHeight
		}
	}
	w.gap(2)
}

func (w *pdfWriter) bullets(items []string) {
	for _, item := range items {
		w.pdf.SetFont("Helvetica", "", pdfFontSize)
		parts := w.pdf.SplitText(w.tr(item), w.contentWidth()-6)
		for i, l := range parts {
			w.ensure(pdfLineHeight)
			if i == 0 {
				w.pdf.SetXY(pdfMargin+1, w.y)
				w.pdf.CellFormat(5, pdfLineHeight, w.tr("-"), "", 0, "L", false, 0, "")
			}
			w.pdf.SetXY(pdfMargin+6, w.y)
			w.pdf.CellFormat(w.contentWidth()-6, pdfLineHeight, l, "", 0, "L", false, 0, "")
			w.y += pdfLineHeight
		}
	}
	w.gap(2)
}

// RenderPDF draws the document on A4 pages with numbered footers.
func RenderPDF(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("surveylens", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfBottomMargin)
	pdf.AliasNbPages("")

	width, height := pdf.GetPageSize()
	w := &pdfWriter{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		y:      pdfMargin,
		width:  width,
		height: height,
	}

	pdf.SetFooterFunc(func() {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(107, 114, 128)
		pdf.SetXY(pdfMargin, height-pdfBottomMargin/2-2)
		pdf.CellFormat(w.contentWidth(), 4, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(17, 24, 39)
	})

	pdf.AddPage()
	for _, blk := range doc.Blocks {
		switch blk.Kind {
		case BlockTitle:
			w.titleBand(blk.Text, blk.Subtitle)
		case BlockHeading:
			w.heading(blk.Text, 14)
		case BlockSubheading:
			w.heading(blk.Text, 12)
		case BlockLabel:
			w.ensure(2 * pdfLineHeight)
			w.lines(blk.Text, 0, "B", pdfFontSize)
		case BlockParagraph:
			w.lines(blk.Text, 0, "", pdfFontSize)
			w.gap(2)
		case BlockKeyValues:
			w.keyValues(blk.Pairs)
		case BlockBullets:
			w.bullets(blk.Items)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
