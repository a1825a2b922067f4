package api

import (
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// showCountChart renders a quick line chart (HTML) of people counts over
// time using go-echarts. This is a debugging view, not part of the JSON
// API contract; the exact markup may change at any time.
// Query params:
//   - limit (optional; default 500) rows to plot, oldest to newest
func (s *Server) showCountChart(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.Counts(parseLimit(r, 500))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query counts: %v", err))
		return
	}
	if len(counts) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no counts recorded yet")
		return
	}

	// Counts come back newest first; plot oldest to newest.
	axis := make([]string, 0, len(counts))
	people := make([]opts.LineData, 0, len(counts))
	devices := make([]opts.LineData, 0, len(counts))
	for i := len(counts) - 1; i >= 0; i-- {
		c := counts[i]
		axis = append(axis, c.Timestamp.Format("15:04:05"))
		people = append(people, opts.LineData{Value: c.PeopleCount})
		devices = append(devices, opts.LineData{Value: c.DeviceCount})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("People at %s", s.label),
			Subtitle: fmt.Sprintf("last %d cycles", len(counts)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(axis).
		AddSeries("people", people).
		AddSeries("devices", devices)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
	}
}
