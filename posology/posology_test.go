package posology

import (
	"testing"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

func english(t *testing.T) translation.Translator {
	t.Helper()
	r, err := translation.NewRegistry("en")
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r.For("en")
}

func dose(id int, amount float64) entities.SingleDose {
	return entities.SingleDose{ID: entities.DoseID(id), Amount: amount, Unit: "mg", Route: entities.RouteOral}
}

func TestFlattenSequenceOfSingleDoses(t *testing.T) {
	tr := english(t)

	tree := entities.DosageSequence{Children: []entities.DosageNode{
		dose(1, 100),
		entities.DosageSequence{Children: []entities.DosageNode{dose(2, 200), dose(3, 300)}},
		dose(4, 400),
	}}

	leaves := Flatten(tree, nil, tr, "")
	if len(leaves) != 4 {
		t.Fatalf("Expected 4 leaves, got %d", len(leaves))
	}
	for i, leaf := range leaves {
		if leaf.DoseID != entities.DoseID(i+1) {
			t.Errorf("leaf %d: expected dose id %d, got %d", i, i+1, leaf.DoseID)
		}
	}
	if leaves[1].DisplayChain != "200.00 mg (oral)" {
		t.Errorf("Siblings must not share descriptors, got %q", leaves[1].DisplayChain)
	}
}

func TestFlattenDescriptorOrder(t *testing.T) {
	tr := english(t)

	tests := []struct {
		name     string
		node     entities.DosageNode
		expected string
	}{
		{
			"repeat of daily dose",
			entities.DosageRepeat{Iterations: 4, Child: entities.DailyDose{SingleDose: dose(1, 400), TimeOfDay: entities.TimeOfDay{Hour: 8}}},
			"4 times, daily at 08:00, 400.00 mg (oral)",
		},
		{
			"repeat of lasting dose",
			entities.DosageRepeat{Iterations: 3, Child: entities.LastingDose{SingleDose: dose(1, 400), Interval: 12 * time.Hour}},
			"3 times, interval 12:00, 400.00 mg (oral)",
		},
		{
			"weekly dose",
			entities.WeeklyDose{SingleDose: dose(1, 250), Day: time.Wednesday, TimeOfDay: entities.TimeOfDay{Hour: 18, Minute: 30}},
			"every Wednesday at 18:30, 250.00 mg (oral)",
		},
		{
			"undefined route omitted",
			entities.SingleDose{ID: 1, Amount: 1.5, Unit: "g"},
			"1.50 g",
		},
		{
			"loop and steady state leave chain untouched",
			entities.DosageLoop{Child: entities.DosageSteadyState{Child: dose(1, 10)}},
			"10.00 mg (oral)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaves := Flatten(tt.node, nil, tr, "")
			if len(leaves) != 1 {
				t.Fatalf("Expected 1 leaf, got %d", len(leaves))
			}
			if leaves[0].DisplayChain != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, leaves[0].DisplayChain)
			}
		})
	}
}

func TestFlattenParallelOffsets(t *testing.T) {
	tr := english(t)

	tree := entities.DosageRepeat{Iterations: 2, Child: entities.ParallelDosageSequence{
		Children: []entities.DosageNode{dose(1, 100), dose(2, 200)},
		Offsets:  []time.Duration{0, 90 * time.Minute},
	}}

	leaves := Flatten(tree, nil, tr, "")
	if len(leaves) != 2 {
		t.Fatalf("Expected 2 leaves, got %d", len(leaves))
	}
	if leaves[0].DisplayChain != "2 times, offset 00:00, 100.00 mg (oral)" {
		t.Errorf("Unexpected first chain %q", leaves[0].DisplayChain)
	}
	if leaves[1].DisplayChain != "2 times, offset 01:30, 200.00 mg (oral)" {
		t.Errorf("Unexpected second chain %q", leaves[1].DisplayChain)
	}
}

func TestFlattenAttachesWarningsById(t *testing.T) {
	tr := english(t)
	warnings := map[entities.DoseID]entities.Validation{
		2: {Warning: "Minimum recommended dosage reached (100.00 mg)", Level: entities.WarningNormal},
		3: {Warning: "", Level: entities.WarningNormal},
	}

	tree := entities.DosageSequence{Children: []entities.DosageNode{dose(1, 150), dose(2, 1), dose(3, 150)}}
	leaves := Flatten(tree, warnings, tr, "")

	if leaves[0].HasWarning() || leaves[2].HasWarning() {
		t.Error("Siblings must not receive the warning")
	}
	if leaves[1].Warning != "Minimum recommended dosage reached (100.00 mg)" {
		t.Errorf("Unexpected warning %q", leaves[1].Warning)
	}
}

func TestFlattenKeepsStructuredValues(t *testing.T) {
	tr := english(t)
	leaf := Flatten(entities.SingleDose{ID: 7, Amount: 400, Unit: "mg", Route: entities.RouteIntravenousDrip, InfusionTime: 30 * time.Minute}, nil, tr, "")[0]

	if leaf.Amount != 400 || leaf.Unit != "mg" || leaf.Route != entities.RouteIntravenousDrip {
		t.Errorf("Unexpected structured values %+v", leaf)
	}
	if leaf.RouteLabel != "intravenous drip" {
		t.Errorf("Expected translated route, got %q", leaf.RouteLabel)
	}
	if leaf.InfusionTime != 30*time.Minute {
		t.Errorf("Expected infusion time to be kept, got %s", leaf.InfusionTime)
	}
}

func TestTimeRangeRegimenLabel(t *testing.T) {
	f := New(english(t), nil)
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		node     entities.DosageNode
		expected string
	}{
		{"loop", entities.DosageLoop{Child: dose(1, 400)}, "continually"},
		{"steady state", entities.DosageSteadyState{LastDoseTime: last, Child: dose(1, 400)}, "at steady state 04.03.2024 20:00"},
		{"none", entities.DosageRepeat{Iterations: 2, Child: entities.DosageLoop{Child: dose(1, 400)}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.TimeRange(entities.DosageTimeRange{Start: start, End: start.Add(72 * time.Hour), Dosage: tt.node})
			if rec.RegimenLabel != tt.expected {
				t.Errorf("Expected label %q, got %q", tt.expected, rec.RegimenLabel)
			}
			if !rec.Start.Equal(start) {
				t.Errorf("Start not preserved")
			}
		})
	}
}

func TestTimeRangeWithoutLeaves(t *testing.T) {
	f := New(english(t), nil)
	rec := f.TimeRange(entities.DosageTimeRange{Dosage: entities.DosageSequence{}})
	if rec.Leaves == nil || len(rec.Leaves) != 0 {
		t.Errorf("Expected empty non-nil leaf list, got %#v", rec.Leaves)
	}
}

type unknownNode struct{ entities.DosageSequence }

func TestFlattenUnknownVariantPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for an unhandled node type")
		}
	}()
	Flatten(unknownNode{}, nil, english(t), "")
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                               "00:00",
		12 * time.Hour:                  "12:00",
		36*time.Hour + 15*time.Minute:   "36:15",
		-30 * time.Minute:               "-00:30",
		90*time.Second + 29*time.Second: "00:02",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestFrenchDescriptors(t *testing.T) {
	r, err := translation.NewRegistry("en")
	if err != nil {
		t.Fatal(err)
	}
	leaves := Flatten(entities.DosageRepeat{Iterations: 2, Child: entities.DailyDose{SingleDose: dose(1, 400), TimeOfDay: entities.TimeOfDay{Hour: 8}}}, nil, r.For("fr"), "")
	if leaves[0].DisplayChain != "2 fois, chaque jour à 08:00, 400.00 mg (orale)" {
		t.Errorf("Unexpected French chain %q", leaves[0].DisplayChain)
	}
}
