// Package posology flattens dosage regimen trees into one record per
// administered dose, each carrying a readable description of every
// enclosing regimen node.
package posology

import (
	"fmt"
	"strings"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

// DisplayDateLayout is used for instants shown inside descriptions
const DisplayDateLayout = "02.01.2006 15:04"

// LeafRecord is one administered dose with its description and warning
type LeafRecord struct {
	DoseID       entities.DoseID
	Amount       float64
	Unit         string
	Route        entities.Route
	RouteLabel   string // empty for undefined routes
	InfusionTime time.Duration
	DisplayChain string
	Warning      string
	WarningLevel entities.WarningLevel
}

// HasWarning reports whether a non-empty warning is attached
func (l LeafRecord) HasWarning() bool {
	return l.Warning != ""
}

// TimeRangeRecord is the flattened form of one dosage time range
type TimeRangeRecord struct {
	Start        time.Time
	End          time.Time
	RegimenLabel string // "continually", "at steady state <date>" or empty
	Leaves       []LeafRecord
}

// Flattener walks dosage trees with a fixed translator and warning table
type Flattener struct {
	tr       translation.Translator
	warnings map[entities.DoseID]entities.Validation
}

// New returns a flattener. warnings may be nil.
func New(tr translation.Translator, warnings map[entities.DoseID]entities.Validation) *Flattener {
	return &Flattener{tr: tr, warnings: warnings}
}

// Flatten is a convenience wrapper around New(tr, warnings).Flatten
func Flatten(node entities.DosageNode, warnings map[entities.DoseID]entities.Validation, tr translation.Translator, chain string) []LeafRecord {
	return New(tr, warnings).Flatten(node, chain)
}

// Flatten returns one record per leaf of node in left to right order.
// chain is the description accumulated by the enclosing nodes.
func (f *Flattener) Flatten(node entities.DosageNode, chain string) []LeafRecord {
	return f.flatten(node, chain, nil)
}

func (f *Flattener) flatten(node entities.DosageNode, chain string, out []LeafRecord) []LeafRecord {
	switch n := node.(type) {
	case nil:
		return out
	case entities.SingleDose:
		return append(out, f.leaf(n, chain))
	case entities.LastingDose:
		return append(out, f.leaf(n.SingleDose, extend(chain, f.tr.Translate("interval")+" "+FormatDuration(n.Interval))))
	case entities.DailyDose:
		return append(out, f.leaf(n.SingleDose, extend(chain, f.tr.Translate("daily_at")+" "+n.TimeOfDay.String())))
	case entities.WeeklyDose:
		desc := fmt.Sprintf("%s %s %s %s", f.tr.Translate("every"), f.tr.Translate(weekdayKey(n.Day)), f.tr.Translate("at"), n.TimeOfDay)
		return append(out, f.leaf(n.SingleDose, extend(chain, desc)))
	case entities.DosageRepeat:
		return f.flatten(n.Child, extend(chain, fmt.Sprintf("%d %s", n.Iterations, f.tr.Translate("times"))), out)
	case entities.DosageSequence:
		for _, child := range n.Children {
			out = f.flatten(child, chain, out)
		}
		return out
	case entities.ParallelDosageSequence:
		for i, child := range n.Children {
			out = f.flatten(child, extend(chain, f.tr.Translate("offset")+" "+FormatDuration(n.Offsets[i])), out)
		}
		return out
	case entities.DosageLoop:
		return f.flatten(n.Child, chain, out)
	case entities.DosageSteadyState:
		return f.flatten(n.Child, chain, out)
	default:
		panic(fmt.Sprintf("posology: unhandled dosage node %T", node))
	}
}

func (f *Flattener) leaf(d entities.SingleDose, chain string) LeafRecord {
	rec := LeafRecord{
		DoseID:       d.ID,
		Amount:       d.Amount,
		Unit:         d.Unit,
		Route:        d.Route,
		InfusionTime: d.InfusionTime,
	}

	desc := FormatAmount(d.Amount) + " " + d.Unit
	if d.Route != entities.RouteUndefined {
		rec.RouteLabel = f.tr.Translate(d.Route.String())
		desc += " (" + rec.RouteLabel + ")"
	}
	rec.DisplayChain = extend(chain, desc)

	if v, ok := f.warnings[d.ID]; ok {
		rec.Warning = v.Warning
		rec.WarningLevel = v.Level
	}
	return rec
}

// RegimenLabel describes the outermost loop or steady state of node, empty otherwise
func (f *Flattener) RegimenLabel(node entities.DosageNode) string {
	switch n := node.(type) {
	case entities.DosageLoop:
		return f.tr.Translate("continually")
	case entities.DosageSteadyState:
		return f.tr.Translate("at_steady_state") + " " + n.LastDoseTime.Format(DisplayDateLayout)
	default:
		return ""
	}
}

// TimeRange flattens one time range
func (f *Flattener) TimeRange(r entities.DosageTimeRange) TimeRangeRecord {
	leaves := f.Flatten(r.Dosage, "")
	if leaves == nil {
		leaves = []LeafRecord{}
	}
	return TimeRangeRecord{
		Start:        r.Start,
		End:          r.End,
		RegimenLabel: f.RegimenLabel(r.Dosage),
		Leaves:       leaves,
	}
}

// History flattens every time range of a dosage history in order
func (f *Flattener) History(h entities.DosageHistory) []TimeRangeRecord {
	out := make([]TimeRangeRecord, 0, len(h))
	for _, r := range h {
		out = append(out, f.TimeRange(r))
	}
	return out
}

// extend appends a descriptor to the chain, outermost descriptors first
func extend(chain, descriptor string) string {
	if chain == "" {
		return descriptor
	}
	return chain + ", " + descriptor
}

// FormatAmount renders a dose amount with two decimals
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatDuration renders a duration as HH:MM, hours may exceed 24
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func weekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}
