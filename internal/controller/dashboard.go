package controller

import (
	"strconv"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/filter"
	"github.com/dgnsrekt/perf_console/internal/refresh"
)

// SummaryLine is a summary table row with its display extras.
type SummaryLine struct {
	aggregate.SummaryRow
	BarWidth    string `json:"bar_width"`
	TracesQuery string `json:"traces_query"`
}

// Dashboard is everything a client needs to render the page.
type Dashboard struct {
	Filter         filter.Params `json:"filter"`
	Location       string        `json:"location"`
	OverallAverage string        `json:"overall_average"`
	Rows           []SummaryLine `json:"rows"`
	View           refresh.View  `json:"view"`
}

func (s *Service) Dashboard() Dashboard {
	view := s.coord.Snapshot()

	s.mu.Lock()
	st := s.state
	location := s.location
	s.mu.Unlock()

	rows := make([]SummaryLine, 0, len(view.Summaries))
	for _, row := range view.Summaries {
		rows = append(rows, SummaryLine{
			SummaryRow:  row,
			BarWidth:    barWidth(row.TotalMicros, view.MaxSummaryTotalMicros),
			TracesQuery: st.TracesQuery(row.TransactionName).Encode(),
		})
	}
	return Dashboard{
		Filter:         st.Params(),
		Location:       location,
		OverallAverage: overallAverage(view.OverallSummary),
		Rows:           rows,
		View:           view,
	}
}

// TooltipRow is one series value at the hovered point.
type TooltipRow struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Highlight bool   `json:"highlight,omitempty"`
}

// Tooltip describes the stacked values under the cursor.
type Tooltip struct {
	Time   int64        `json:"time"`
	Rows   []TooltipRow `json:"rows,omitempty"`
	NoData bool         `json:"no_data"`
	Text   string       `json:"text,omitempty"`
}

// Tooltip lists each series' value at dataIndex, marking the series at
// highlightSeries. A point where every series is zero reads "No data".
func (s *Service) Tooltip(dataIndex, highlightSeries int) (Tooltip, error) {
	view := s.coord.Snapshot()
	if len(view.Series) == 0 {
		return Tooltip{NoData: true, Text: "No data"}, nil
	}
	if dataIndex < 0 {
		return Tooltip{}, validationf("data index %d out of range", dataIndex)
	}

	var tip Tooltip
	total := 0.0
	for i, series := range view.Series {
		if dataIndex >= len(series.Data) {
			return Tooltip{}, validationf("data index %d out of range for series %q (points=%d)", dataIndex, series.Label, len(series.Data))
		}
		point := series.Data[dataIndex]
		if i == 0 {
			tip.Time = point.Time()
		}
		tip.Rows = append(tip.Rows, TooltipRow{
			Label:     series.Label,
			Value:     strconv.FormatFloat(point.Value(), 'f', 3, 64),
			Highlight: i == highlightSeries,
		})
		total += point.Value()
	}
	if total == 0 {
		return Tooltip{Time: tip.Time, NoData: true, Text: "No data"}, nil
	}
	return tip, nil
}
