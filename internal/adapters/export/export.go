// Package export renders already-loaded events and spheres into
// downloadable CSV and PDF reports.
package export

import (
	"fmt"
	"time"

	"github.com/Aygren/balendip-sub000/internal/domain/analytics"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/pkg/metrics"
)

// Format names an output document type.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// RecentEvents is how many of the newest events the PDF report lists.
const RecentEvents = 10

// DateRange bounds the report, both ends inclusive, as YYYY-MM-DD.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Validate checks the layout of both ends and their order.
func (r DateRange) Validate() error {
	start, err := time.Parse(model.DateLayout, r.Start)
	if err != nil {
		return fmt.Errorf("%w: start %q", ErrInvalidRange, r.Start)
	}
	end, err := time.Parse(model.DateLayout, r.End)
	if err != nil {
		return fmt.Errorf("%w: end %q", ErrInvalidRange, r.End)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Request is everything a report is built from. Rendering makes no calls
// outside the process.
type Request struct {
	Format    Format             `json:"format"`
	DateRange DateRange          `json:"date_range"`
	Events    []model.Event      `json:"events,omitempty"`
	Spheres   []model.LifeSphere `json:"spheres,omitempty"`
}

// Document is a rendered report.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Filename returns the download name for a report over r.
func Filename(r DateRange, f Format) string {
	return fmt.Sprintf("balendip-report-%s-%s.%s", r.Start, r.End, f)
}

// Render produces the document for req. Events are reported newest first
// regardless of input order.
func Render(req Request) (Document, error) {
	if err := req.DateRange.Validate(); err != nil {
		return Document{}, err
	}
	events := append([]model.Event(nil), req.Events...)
	model.SortEvents(events)

	var (
		data        []byte
		contentType string
		err         error
	)
	switch req.Format {
	case FormatCSV:
		data, err = renderCSV(events, req.Spheres)
		contentType = "text/csv; charset=utf-8"
	case FormatPDF:
		data, err = renderPDF(newReport(req.DateRange, events, req.Spheres))
		contentType = "application/pdf"
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
	if err != nil {
		return Document{}, fmt.Errorf("render %s: %w", req.Format, err)
	}

	metrics.RecordExport(string(req.Format))
	return Document{
		Filename:    Filename(req.DateRange, req.Format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// report is the data shown in the PDF.
type report struct {
	Range           DateRange
	Stats           analytics.Statistics
	Balance         analytics.Balance
	Recent          []model.Event
	Recommendations []analytics.Recommendation
	sphereNames     map[string]string
}

func newReport(r DateRange, events []model.Event, spheres []model.LifeSphere) report {
	stats := analytics.Aggregate(events)
	recent := events
	if len(recent) > RecentEvents {
		recent = recent[:RecentEvents]
	}
	return report{
		Range:           r,
		Stats:           stats,
		Balance:         analytics.SphereBalance(spheres, stats),
		Recent:          recent,
		Recommendations: analytics.Recommendations(stats, spheres),
		sphereNames:     sphereNames(spheres),
	}
}

func sphereNames(spheres []model.LifeSphere) map[string]string {
	names := make(map[string]string, len(spheres))
	for _, s := range spheres {
		names[s.ID] = s.Name
	}
	return names
}

// labels maps sphere ids to names. Ids without a sphere are shown as is.
func labels(ids []string, names map[string]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := names[id]; ok && n != "" {
			out = append(out, n)
			continue
		}
		out = append(out, id)
	}
	return out
}
