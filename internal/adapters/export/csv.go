package export

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

var csvHeader = []string{"date", "time", "title", "description", "emoji", "emotion", "spheres"}

func renderCSV(events []model.Event, spheres []model.LifeSphere) ([]byte, error) {
	names := sphereNames(spheres)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range events {
		e := &events[i]
		row := []string{
			e.Date,
			e.Time,
			e.Title,
			e.Description,
			e.Emoji,
			string(e.Emotion),
			strings.Join(labels(e.Spheres, names), ";"),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
