package filter

import (
	"slices"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/config"
)

const (
	SortTotal = "total"
	SortDesc  = "desc"
	SortAsc   = "asc"

	// DefaultSummaryLimit keeps the table to a screenful.
	DefaultSummaryLimit = 25

	defaultLookback = 105 * time.Minute
	defaultWidth    = 120 * time.Minute
)

// Settings are the deployment constants every filter is interpreted against.
type Settings struct {
	DefaultTransactionType string
	// TransactionTypes lists the selectable types; empty accepts any.
	TransactionTypes []string
	Interval         time.Duration
	Loc              *time.Location
}

// SettingsFromLayout derives filter settings from the dashboard layout.
func SettingsFromLayout(l *config.Layout) (Settings, error) {
	loc, err := l.TimeLocation()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		DefaultTransactionType: l.DefaultTransactionType,
		TransactionTypes:       append([]string(nil), l.TransactionTypes...),
		Interval:               l.AggregateInterval(),
		Loc:                    loc,
	}, nil
}

// KnowsTransactionType reports whether t may be selected. The default type
// is always allowed.
func (s Settings) KnowsTransactionType(t string) bool {
	if len(s.TransactionTypes) == 0 || t == s.DefaultTransactionType {
		return true
	}
	return slices.Contains(s.TransactionTypes, t)
}

func (s Settings) location() *time.Location {
	if s.Loc == nil {
		return time.Local
	}
	return s.Loc
}

// State is the dashboard filter: viewed day, chart range, transaction
// selection and summary sort.
type State struct {
	Settings Settings

	FilterDate time.Time // midnight of the viewed day
	From       time.Time
	To         time.Time
	// RangeIsDefault is true until the user zooms, selects or moves the range.
	RangeIsDefault bool

	TransactionType string
	TransactionName string

	SortAttribute string
	SortDirection string
	SummaryLimit  int
}

// New returns the filter shown when no location parameters are given.
func New(settings Settings, now time.Time) State {
	from, to := DefaultRange(now, settings.Interval, settings.location())
	return State{
		Settings:        settings,
		FilterDate:      StartOfDay(now, settings.location()),
		From:            from,
		To:              to,
		RangeIsDefault:  true,
		TransactionType: settings.DefaultTransactionType,
		SortAttribute:   SortTotal,
		SortDirection:   SortDesc,
		SummaryLimit:    DefaultSummaryLimit,
	}
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns midnight of the following day.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1)
}

// DefaultRange is a two hour window ending a quarter hour past the last
// complete aggregate, never reaching outside the current day.
func DefaultRange(now time.Time, interval time.Duration, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	minute := local.Minute()
	if interval > time.Minute && interval%time.Minute == 0 {
		step := int(interval / time.Minute)
		minute = step * (minute / step)
	}
	rounded := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), minute, 0, 0, loc)

	today := StartOfDay(now, loc)
	tomorrow := EndOfDay(now, loc)

	from := rounded.Add(-defaultLookback)
	if from.Before(today) {
		from = today
	}
	to := from.Add(defaultWidth)
	if to.After(tomorrow) {
		to = tomorrow
	}
	return from, to
}

// DayBounds is the zoomable extent of the chart: the whole filter day.
func (s State) DayBounds() (time.Time, time.Time) {
	return s.FilterDate, s.FilterDate.AddDate(0, 0, 1)
}

// SetRange replaces the chart range, clamped to the filter day.
func (s *State) SetRange(from, to time.Time) {
	if to.Before(from) {
		from, to = to, from
	}
	dayStart, dayEnd := s.DayBounds()
	if from.Before(dayStart) {
		from = dayStart
	}
	if to.After(dayEnd) {
		to = dayEnd
	}
	if !to.After(from) {
		to = from.Add(s.minimumWidth())
		if to.After(dayEnd) {
			to = dayEnd
			from = to.Add(-s.minimumWidth())
		}
	}
	s.From, s.To = from, to
	s.RangeIsDefault = false
}

// Shift moves the range by delta, keeping its width and staying inside the day.
func (s *State) Shift(delta time.Duration) {
	width := s.To.Sub(s.From)
	dayStart, dayEnd := s.DayBounds()
	from := s.From.Add(delta)
	if from.Before(dayStart) {
		from = dayStart
	}
	if from.Add(width).After(dayEnd) {
		from = dayEnd.Add(-width)
	}
	s.From, s.To = from, from.Add(width)
	s.RangeIsDefault = false
}

// Zoom rescales the range around its center; factor 2 zooms out, 0.5 in.
func (s *State) Zoom(factor float64) {
	if factor <= 0 {
		return
	}
	center := s.From.Add(s.To.Sub(s.From) / 2)
	half := time.Duration(float64(s.To.Sub(s.From)) * factor / 2)
	if half < s.minimumWidth()/2 {
		half = s.minimumWidth() / 2
	}
	s.SetRange(center.Add(-half), center.Add(half))
}

func (s State) minimumWidth() time.Duration {
	if s.Settings.Interval > 0 {
		return s.Settings.Interval
	}
	return time.Minute
}

// RebaseToFilterDate moves the range onto FilterDate when the date picker
// changed day, keeping the same time of day. It reports whether it moved.
func (s *State) RebaseToFilterDate() bool {
	midnight := StartOfDay(s.From, s.Settings.location())
	if midnight.Equal(s.FilterDate) {
		return false
	}
	s.RangeIsDefault = false
	s.From = s.FilterDate.Add(s.From.Sub(midnight))
	s.To = s.FilterDate.Add(s.To.Sub(midnight))
	return true
}

// SetFilterDate changes the viewed day. The range follows on the next rebase.
func (s *State) SetFilterDate(day time.Time) bool {
	midnight := StartOfDay(day, s.Settings.location())
	if midnight.Equal(s.FilterDate) {
		return false
	}
	s.FilterDate = midnight
	return true
}

// ToggleSort flips direction on the current attribute, or sorts a new
// attribute descending.
func (s *State) ToggleSort(attribute string) {
	if s.SortAttribute == attribute {
		if s.SortDirection == SortDesc {
			s.SortDirection = SortAsc
		} else {
			s.SortDirection = SortDesc
		}
		return
	}
	s.SortAttribute = attribute
	s.SortDirection = SortDesc
}

// DoubleSummaryLimit grows the table for "show more".
func (s *State) DoubleSummaryLimit() int {
	if s.SummaryLimit <= 0 {
		s.SummaryLimit = DefaultSummaryLimit
	}
	s.SummaryLimit *= 2
	return s.SummaryLimit
}

func (s State) ChartQuery() aggregate.ChartQuery {
	return aggregate.ChartQuery{
		From:            s.From.UnixMilli(),
		To:              s.To.UnixMilli(),
		TransactionType: s.TransactionType,
		TransactionName: s.TransactionName,
	}
}

func (s State) SummaryQuery() aggregate.SummaryQuery {
	return aggregate.SummaryQuery{
		From:            s.From.UnixMilli(),
		To:              s.To.UnixMilli(),
		TransactionType: s.TransactionType,
		SortAttribute:   s.SortAttribute,
		SortDirection:   s.SortDirection,
		Limit:           s.SummaryLimit,
	}
}

// Params is the JSON shape of a filter.
type Params struct {
	FilterDate      string `json:"filter_date"`
	From            int64  `json:"from"`
	To              int64  `json:"to"`
	RangeIsDefault  bool   `json:"range_is_default"`
	TransactionType string `json:"transaction_type"`
	TransactionName string `json:"transaction_name,omitempty"`
	SortAttribute   string `json:"sort_attribute"`
	SortDirection   string `json:"sort_direction"`
	SummaryLimit    int    `json:"summary_limit"`
}

func (s State) Params() Params {
	return Params{
		FilterDate:      s.FilterDate.Format(time.DateOnly),
		From:            s.From.UnixMilli(),
		To:              s.To.UnixMilli(),
		RangeIsDefault:  s.RangeIsDefault,
		TransactionType: s.TransactionType,
		TransactionName: s.TransactionName,
		SortAttribute:   s.SortAttribute,
		SortDirection:   s.SortDirection,
		SummaryLimit:    s.SummaryLimit,
	}
}
