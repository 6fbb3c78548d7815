package analysis

import (
	"strconv"
	"strings"

	"finsview/internal/domain"
	"finsview/pkg/gofins"
)

// CreateForm holds the create-analysis fields as typed.
type CreateForm struct {
	Name         string
	Interval     string
	TimeFrom     string
	TimeTo       string
	McapMin      string
	InceptionMax string
	HistMin      string
	HistMax      string
	HistBins     string
}

// DefaultCreateForm returns the form pre-filled with the usual screen.
func DefaultCreateForm() CreateForm {
	return CreateForm{
		Interval: string(domain.IntervalWeekly),
		TimeFrom: "2009",
		McapMin:  "100000000",
		HistMin:  "-80",
		HistMax:  "80",
		HistBins: "100",
	}
}

// Request validates the form and builds the request body. Empty optional
// fields are omitted.
func (f CreateForm) Request() (domain.CreateAnalysisRequest, error) {
	req := domain.CreateAnalysisRequest{Name: strings.TrimSpace(f.Name)}
	if req.Name == "" {
		return req, invalid("name", "Analysis name is required")
	}

	interval := domain.Interval(strings.TrimSpace(f.Interval))
	if interval == "" {
		interval = domain.IntervalWeekly
	}
	if !interval.Valid() {
		return req, invalid("interval", "Interval must be daily, weekly or monthly")
	}
	req.Interval = interval

	from, err := optionalDate("time_from", f.TimeFrom)
	if err != nil {
		return req, err
	}
	to, err := optionalDate("time_to", f.TimeTo)
	if err != nil {
		return req, err
	}
	if from != nil && to != nil {
		a, _ := domain.ParseFlexibleDate(*from, false)
		b, _ := domain.ParseFlexibleDate(*to, true)
		if b.Before(a) {
			return req, invalid("time_to", "Time to must not be before time from")
		}
	}
	req.TimeFrom, req.TimeTo = from, to

	if req.InceptionMax, err = optionalDate("inception_max", f.InceptionMax); err != nil {
		return req, err
	}

	if s := strings.TrimSpace(f.McapMin); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err != nil || v < 0 {
			return req, invalid("mcap_min", "Market cap floor must be a non-negative number")
		}
		req.McapMin = &s
	}

	if s := strings.TrimSpace(f.HistBins); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return req, invalid("hist_bins", "Histogram bins must be a positive integer")
		}
		req.HistBins = &n
	}
	if req.HistMin, err = optionalFloat("hist_min", f.HistMin); err != nil {
		return req, err
	}
	if req.HistMax, err = optionalFloat("hist_max", f.HistMax); err != nil {
		return req, err
	}
	if req.HistMin != nil && req.HistMax != nil && *req.HistMin >= *req.HistMax {
		return req, invalid("hist_max", "Histogram max must be greater than min")
	}
	return req, nil
}

func invalid(field, msg string) error {
	return &gofins.ValidationError{Field: field, Message: msg}
}

func optionalDate(field, raw string) (*string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	if _, err := domain.ParseFlexibleDate(s, false); err != nil {
		return nil, invalid(field, "Dates use YYYY, YYYY-MM or YYYY-MM-DD")
	}
	return &s, nil
}

func optionalFloat(field, raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalid(field, "Histogram bounds must be numbers")
	}
	return &v, nil
}
