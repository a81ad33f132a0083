package filter

import (
	"net/url"
	"strconv"
	"time"
)

// Location query keys, shared with bookmarked dashboard URLs.
const (
	keyFrom            = "from"
	keyTo              = "to"
	keyTransactionType = "transaction-type"
	keyTransactionName = "transaction-name"
	keySortAttribute   = "sort-attribute"
	keySortDirection   = "sort-direction"
)

// FromLocation rebuilds a filter from location query parameters. Both from
// and to must be present for either to take effect. The stored from is one
// aggregate interval early because each point aggregates the interval
// before it.
func FromLocation(values url.Values, settings Settings, now time.Time) State {
	s := New(settings, now)

	from := parseMillis(values.Get(keyFrom))
	to := parseMillis(values.Get(keyTo))
	if from != 0 && to != 0 {
		s.From = time.UnixMilli(from).Add(settings.Interval).In(settings.location())
		s.To = time.UnixMilli(to).In(settings.location())
		s.FilterDate = StartOfDay(s.From, settings.location())
		s.RangeIsDefault = false
	}

	if v := values.Get(keyTransactionType); v != "" {
		s.TransactionType = v
	}
	if v := values.Get(keySortAttribute); v != "" {
		s.SortAttribute = v
	}
	if v := values.Get(keySortDirection); v != "" {
		s.SortDirection = v
	}
	s.TransactionName = values.Get(keyTransactionName)
	return s
}

// ParseLocation accepts a raw query string with or without the leading '?'.
func ParseLocation(raw string, settings Settings, now time.Time) (State, error) {
	if len(raw) > 0 && raw[0] == '?' {
		raw = raw[1:]
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return State{}, err
	}
	return FromLocation(values, settings, now), nil
}

// Location encodes the filter for the address bar, leaving out every
// parameter that equals its default.
func (s State) Location() url.Values {
	v := url.Values{}
	if !s.RangeIsDefault {
		v.Set(keyFrom, strconv.FormatInt(s.From.Add(-s.Settings.Interval).UnixMilli(), 10))
		v.Set(keyTo, strconv.FormatInt(s.To.UnixMilli(), 10))
	}
	if s.TransactionType != s.Settings.DefaultTransactionType {
		v.Set(keyTransactionType, s.TransactionType)
	}
	if s.TransactionName != "" {
		v.Set(keyTransactionName, s.TransactionName)
	}
	if s.SortAttribute != SortTotal || s.SortDirection != SortDesc {
		v.Set(keySortAttribute, s.SortAttribute)
		if s.SortDirection != SortDesc {
			v.Set(keySortDirection, s.SortDirection)
		}
	}
	return v
}

// TracesQuery links a summary row (or the whole type when name is empty) to
// the trace explorer.
func (s State) TracesQuery(transactionName string) url.Values {
	v := url.Values{}
	v.Set("from", strconv.FormatInt(s.From.Add(-s.Settings.Interval).UnixMilli(), 10))
	v.Set("to", strconv.FormatInt(s.To.UnixMilli(), 10))
	v.Set("transactionType", s.TransactionType)
	if transactionName != "" {
		v.Set("transactionName", transactionName)
		v.Set("transactionNameComparator", "equals")
	}
	return v
}

func parseMillis(raw string) int64 {
	if raw == "" {
		return 0
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f)
	}
	return 0
}
