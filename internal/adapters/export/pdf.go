package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Aygren/balendip-sub000/internal/domain/analytics"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
	barWidth   = 90.0
	fontFamily = "Helvetica"
)

// pdfWriter binds an fpdf document to the cp1252 translator core fonts need.
type pdfWriter struct {
	doc *fpdf.Fpdf
	tr  func(string) string
}

func renderPDF(r report) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.SetTitle("Balendip report", true)
	doc.SetCreator("balendip", true)
	// Fixed dates keep output reproducible for the same input.
	doc.SetCreationDate(time.Unix(0, 0).UTC())
	doc.SetModificationDate(time.Unix(0, 0).UTC())
	doc.SetCatalogSort(true)
	doc.AddPage()

	w := &pdfWriter{doc: doc, tr: doc.UnicodeTranslatorFromDescriptor("")}
	w.title(r.Range)
	w.summary(r.Stats)
	w.spheres(r.Balance)
	w.recent(r.Recent, r.sphereNames)
	w.recommendations(r.Recommendations)

	if err := doc.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) heading(text string) {
	w.doc.Ln(lineHeight)
	w.doc.SetFont(fontFamily, "B", 13)
	w.doc.CellFormat(0, lineHeight+2, w.tr(text), "B", 1, "L", false, 0, "")
	w.doc.Ln(2)
	w.doc.SetFont(fontFamily, "", 10)
}

func (w *pdfWriter) line(text string) {
	w.doc.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
}

func (w *pdfWriter) title(r DateRange) {
	w.doc.SetFont(fontFamily, "B", 18)
	w.doc.CellFormat(0, 10, w.tr("Life balance report"), "", 1, "L", false, 0, "")
	w.doc.SetFont(fontFamily, "", 11)
	w.doc.CellFormat(0, lineHeight, w.tr(fmt.Sprintf("Period: %s to %s", r.Start, r.End)), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) summary(s analytics.Statistics) {
	w.heading("Summary")
	w.line(fmt.Sprintf("Events logged: %d", s.TotalEvents))
	w.line(fmt.Sprintf("Mood score: %d/100", s.MoodScore))
	for _, share := range analytics.Shares(s.EmotionCounts) {
		w.line(fmt.Sprintf("%s: %d (%.1f%%)", emotionLabel(share.Emotion), share.Count, share.Percent))
	}
	if n := len(s.Warnings); n > 0 {
		w.line(fmt.Sprintf("Skipped from mood totals: %d event(s) with an unrecognized emotion", n))
	}
}

func (w *pdfWriter) spheres(b analytics.Balance) {
	w.heading("Life spheres")
	if len(b.Points) == 0 {
		w.line("No spheres configured.")
		return
	}
	for _, p := range b.Points {
		w.doc.CellFormat(55, lineHeight, w.tr(p.Name), "", 0, "L", false, 0, "")
		x, y := w.doc.GetX(), w.doc.GetY()
		r, g, bl := parseHexColor(p.Color)
		w.doc.SetFillColor(230, 230, 230)
		w.doc.Rect(x, y+1, barWidth, lineHeight-2, "F")
		w.doc.SetFillColor(r, g, bl)
		w.doc.Rect(x, y+1, barWidth*float64(p.Score)/float64(model.MaxSphereScore), lineHeight-2, "F")
		w.doc.SetX(x + barWidth + 4)
		w.doc.CellFormat(0, lineHeight, fmt.Sprintf("%d/10  (%d events)", p.Score, p.Events), "", 1, "L", false, 0, "")
	}
	w.line(fmt.Sprintf("Average score: %.1f", b.Average))
	if b.Lowest != nil && b.Highest != nil {
		w.line(fmt.Sprintf("Lowest: %s (%d), highest: %s (%d)", b.Lowest.Name, b.Lowest.Score, b.Highest.Name, b.Highest.Score))
	}
}

func (w *pdfWriter) recent(events []model.Event, names map[string]string) {
	w.heading("Recent events")
	if len(events) == 0 {
		w.line("No events in this period.")
		return
	}
	for i := range events {
		e := &events[i]
		when := e.Date
		if e.Time != "" {
			when += " " + e.Time
		}
		w.doc.SetFont(fontFamily, "B", 10)
		w.line(fmt.Sprintf("%s  %s  [%s]", when, e.Title, emotionLabel(e.Emotion)))
		w.doc.SetFont(fontFamily, "", 10)
		if e.Description != "" {
			w.line(e.Description)
		}
		if len(e.Spheres) > 0 {
			w.line("Spheres: " + strings.Join(labels(e.Spheres, names), ", "))
		}
	}
}

func (w *pdfWriter) recommendations(recs []analytics.Recommendation) {
	w.heading("Recommendations")
	if len(recs) == 0 {
		w.line("Nothing to suggest for this period.")
		return
	}
	for _, rec := range recs {
		w.line("- " + rec.Message)
	}
}

func emotionLabel(e model.Emotion) string {
	switch e {
	case model.EmotionPositive:
		return "Positive"
	case model.EmotionNeutral:
		return "Neutral"
	case model.EmotionNegative:
		return "Negative"
	}
	return string(e)
}

// parseHexColor reads #rrggbb, falling back to a neutral blue.
func parseHexColor(s string) (r, g, b int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 59, 130, 246
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 59, 130, 246
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
