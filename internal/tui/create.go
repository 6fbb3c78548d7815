package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"finsview/internal/analysis"
)

type formField struct {
	label string
	input textinput.Model
}

// createView is the new-analysis form. It captures typing, so only esc,
// enter and field navigation keys reach the application.
type createView struct {
	fields     []formField
	focus      int
	err        error
	submitting bool
}

func newCreateView() *createView {
	def := analysis.DefaultCreateForm()
	specs := []struct{ label, value, placeholder string }{
		{"Name", def.Name, "required"},
		{"Interval", def.Interval, "daily, weekly or monthly"},
		{"Time from", def.TimeFrom, "YYYY, YYYY-MM or YYYY-MM-DD"},
		{"Time to", def.TimeTo, "defaults to the current month"},
		{"Market cap min", def.McapMin, "USD"},
		{"Inception max", def.InceptionMax, "YYYY, YYYY-MM or YYYY-MM-DD"},
		{"Histogram min", def.HistMin, "percent"},
		{"Histogram max", def.HistMax, "percent"},
		{"Histogram bins", def.HistBins, "count"},
	}
	v := &createView{}
	for _, s := range specs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 64
		ti.Width = 32
		ti.Placeholder = s.placeholder
		ti.SetValue(s.value)
		v.fields = append(v.fields, formField{label: s.label, input: ti})
	}
	v.fields[0].input.Focus()
	return v
}

func (v *createView) kind() viewKind { return kindCreate }
func (v *createView) title() string  { return "New analysis" }

// form reads the inputs back in field order.
func (v *createView) form() analysis.CreateForm {
	val := func(i int) string { return strings.TrimSpace(v.fields[i].input.Value()) }
	return analysis.CreateForm{
		Name:         val(0),
		Interval:     val(1),
		TimeFrom:     val(2),
		TimeTo:       val(3),
		McapMin:      val(4),
		InceptionMax: val(5),
		HistMin:      val(6),
		HistMax:      val(7),
		HistBins:     val(8),
	}
}

func (v *createView) setFocus(i int) tea.Cmd {
	v.fields[v.focus].input.Blur()
	v.focus = (i%len(v.fields) + len(v.fields)) % len(v.fields)
	return v.fields[v.focus].input.Focus()
}

func (v *createView) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.fields[v.focus].input, cmd = v.fields[v.focus].input.Update(msg)
	return cmd
}
