package entities

import (
	"fmt"
	"time"
)

// DoseID identifies one leaf dose inside a result. IDs are assigned in
// traversal order when the result is parsed and never reused.
type DoseID int

// Route is the administration route of a dose
type Route int

const (
	RouteUndefined Route = iota
	RouteOral
	RouteNasal
	RouteRectal
	RouteVaginal
	RouteSublingual
	RouteTransdermal
	RouteSubcutaneous
	RouteIntramuscular
	RouteIntravenousDrip
	RouteIntravenousBolus
)

var routeNames = map[Route]string{
	RouteUndefined:        "undefined",
	RouteOral:             "oral",
	RouteNasal:            "nasal",
	RouteRectal:           "rectal",
	RouteVaginal:          "vaginal",
	RouteSublingual:       "sublingual",
	RouteTransdermal:      "transdermal",
	RouteSubcutaneous:     "subcutaneous",
	RouteIntramuscular:    "intramuscular",
	RouteIntravenousDrip:  "intravenousDrip",
	RouteIntravenousBolus: "intravenousBolus",
}

// String returns the wire name, which is also the translation key
func (r Route) String() string {
	if name, ok := routeNames[r]; ok {
		return name
	}
	return routeNames[RouteUndefined]
}

// ParseRoute maps a wire name to a Route. Unknown names are an error.
func ParseRoute(s string) (Route, error) {
	if s == "" {
		return RouteUndefined, nil
	}
	for r, name := range routeNames {
		if name == s {
			return r, nil
		}
	}
	return RouteUndefined, fmt.Errorf("unknown administration route %q", s)
}

// TimeOfDay is a wall-clock time without date
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
}

// DosageNode is one node of a dosage regimen tree. The set of variants is
// closed: only the types in this file implement it.
type DosageNode interface {
	dosageNode()
}

// SingleDose is one administration
type SingleDose struct {
	ID           DoseID
	Amount       float64
	Unit         string
	Route        Route
	InfusionTime time.Duration
}

// LastingDose repeats a dose at a fixed interval
type LastingDose struct {
	SingleDose
	Interval time.Duration
}

// DailyDose is given every day at the same time
type DailyDose struct {
	SingleDose
	TimeOfDay TimeOfDay
}

// WeeklyDose is given once a week
type WeeklyDose struct {
	SingleDose
	Day       time.Weekday
	TimeOfDay TimeOfDay
}

// DosageRepeat repeats its child a number of times
type DosageRepeat struct {
	Iterations int
	Child      DosageNode
}

// DosageSequence runs its children one after another
type DosageSequence struct {
	Children []DosageNode
}

// ParallelDosageSequence runs its children concurrently, each shifted by its
// offset. len(Children) == len(Offsets).
type ParallelDosageSequence struct {
	Children []DosageNode
	Offsets  []time.Duration
}

// DosageLoop repeats its child until the end of the time range
type DosageLoop struct {
	Child DosageNode
}

// DosageSteadyState describes a regimen already at steady state
type DosageSteadyState struct {
	LastDoseTime time.Time
	Child        DosageNode
}

func (SingleDose) dosageNode()             {}
func (LastingDose) dosageNode()            {}
func (DailyDose) dosageNode()              {}
func (WeeklyDose) dosageNode()             {}
func (DosageRepeat) dosageNode()           {}
func (DosageSequence) dosageNode()         {}
func (ParallelDosageSequence) dosageNode() {}
func (DosageLoop) dosageNode()             {}
func (DosageSteadyState) dosageNode()      {}

// DosageTimeRange pairs a period with the root of its regimen
type DosageTimeRange struct {
	Start  time.Time
	End    time.Time
	Dosage DosageNode
}

// DosageHistory is an ordered list of time ranges
type DosageHistory []DosageTimeRange

// Doses returns every leaf dose of the history in traversal order
func (h DosageHistory) Doses() []SingleDose {
	var out []SingleDose
	for _, tr := range h {
		out = appendDoses(out, tr.Dosage)
	}
	return out
}

// LastDose returns the dose of the latest time range that has one
func (h DosageHistory) LastDose() (SingleDose, time.Time, bool) {
	for i := len(h) - 1; i >= 0; i-- {
		doses := appendDoses(nil, h[i].Dosage)
		if len(doses) > 0 {
			return doses[len(doses)-1], h[i].Start, true
		}
	}
	return SingleDose{}, time.Time{}, false
}

func appendDoses(out []SingleDose, node DosageNode) []SingleDose {
	switch n := node.(type) {
	case nil:
		return out
	case SingleDose:
		return append(out, n)
	case LastingDose:
		return append(out, n.SingleDose)
	case DailyDose:
		return append(out, n.SingleDose)
	case WeeklyDose:
		return append(out, n.SingleDose)
	case DosageRepeat:
		return appendDoses(out, n.Child)
	case DosageSequence:
		for _, c := range n.Children {
			out = appendDoses(out, c)
		}
		return out
	case ParallelDosageSequence:
		for _, c := range n.Children {
			out = appendDoses(out, c)
		}
		return out
	case DosageLoop:
		return appendDoses(out, n.Child)
	case DosageSteadyState:
		return appendDoses(out, n.Child)
	default:
		panic(fmt.Sprintf("entities: unhandled dosage node %T", node))
	}
}
