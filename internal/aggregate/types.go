package aggregate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

const (
	CodeValidation  = "VALIDATION"
	CodeNotFound    = "NOT_FOUND"
	CodeTransport   = "TRANSPORT"
	CodeTimeout     = "TIMEOUT"
	CodeApplication = "APPLICATION"
	CodeDecode      = "DECODE"
)

// CodedError is a typed error used for stable API mapping and banner text.
type CodedError struct {
	Code    string
	Message string
	Status  int // HTTP status of an application error, 0 otherwise
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// ChartQuery selects the stacked time-series for one transaction type,
// optionally narrowed to a single transaction name.
type ChartQuery struct {
	From            int64  `json:"from"`
	To              int64  `json:"to"`
	TransactionType string `json:"transactionType"`
	TransactionName string `json:"transactionName,omitempty"`
}

func (q ChartQuery) Values() url.Values {
	v := url.Values{}
	v.Set("from", strconv.FormatInt(q.From, 10))
	v.Set("to", strconv.FormatInt(q.To, 10))
	v.Set("transactionType", q.TransactionType)
	if q.TransactionName != "" {
		v.Set("transactionName", q.TransactionName)
	}
	return v
}

// SummaryQuery selects a sorted, limited page of transaction summaries.
type SummaryQuery struct {
	From            int64  `json:"from"`
	To              int64  `json:"to"`
	TransactionType string `json:"transactionType"`
	SortAttribute   string `json:"sortAttribute"`
	SortDirection   string `json:"sortDirection"`
	Limit           int    `json:"limit"`
}

func (q SummaryQuery) Values() url.Values {
	v := url.Values{}
	v.Set("from", strconv.FormatInt(q.From, 10))
	v.Set("to", strconv.FormatInt(q.To, 10))
	v.Set("transactionType", q.TransactionType)
	v.Set("sortAttribute", q.SortAttribute)
	v.Set("sortDirection", q.SortDirection)
	v.Set("limit", strconv.Itoa(q.Limit))
	return v
}

// Point is one [timestamp, value] pair of a stacked series.
type Point [2]float64

func (p Point) Time() int64    { return int64(p[0]) }
func (p Point) Value() float64 { return p[1] }

// UnmarshalJSON tolerates null values, which the backend emits for empty buckets.
func (p *Point) UnmarshalJSON(data []byte) error {
	var raw [2]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i, v := range raw {
		if v != nil {
			p[i] = *v
		} else {
			p[i] = 0
		}
	}
	return nil
}

// Series is one metric band of the stacked chart.
type Series struct {
	MetricName string  `json:"metricName"`
	Data       []Point `json:"data"`
}

// Label is the legend text; the backend leaves the remainder band unnamed.
func (s Series) Label() string {
	if s.MetricName == "" {
		return "Other"
	}
	return s.MetricName
}

// SummaryRow is one transaction line of the summary table.
type SummaryRow struct {
	TransactionName string `json:"transactionName"`
	TotalMicros     int64  `json:"totalMicros"`
	Count           int64  `json:"count"`
}

// OverallSummary aggregates every transaction of the selected type.
type OverallSummary struct {
	TotalMicros int64 `json:"totalMicros"`
	Count       int64 `json:"count"`
}

// SummaryPage is the summaries endpoint response.
type SummaryPage struct {
	OverallSummary       *OverallSummary `json:"overallSummary"`
	MoreAvailable        bool            `json:"moreAvailable"`
	TransactionSummaries []SummaryRow    `json:"transactionSummaries"`
}
