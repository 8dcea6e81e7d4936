package entities

// TranslatableString holds one text per language code
type TranslatableString map[string]string

// Get returns the text for lang, falling back to English then to any entry
func (t TranslatableString) Get(lang string) string {
	if s, ok := t[lang]; ok {
		return s
	}
	if s, ok := t["en"]; ok {
		return s
	}
	for _, s := range t {
		return s
	}
	return ""
}

// TargetType is the pharmacokinetic quantity a target constrains
type TargetType string

const (
	TargetResidual     TargetType = "residual"
	TargetPeak         TargetType = "peak"
	TargetMean         TargetType = "mean"
	TargetAuc          TargetType = "auc"
	TargetAuc24        TargetType = "auc24"
	TargetCumulative   TargetType = "cumulativeAuc"
	TargetAucOverMic   TargetType = "aucOverMic"
	TargetAuc24OverMic TargetType = "auc24OverMic"
	TargetTimeOverMic  TargetType = "timeOverMic"
)

// TargetDefinition is a clinical target of an active moiety
type TargetDefinition struct {
	Type            TargetType `json:"type"`
	Unit            string     `json:"unit"`
	Min             float64    `json:"min"`
	Best            float64    `json:"best"`
	Max             float64    `json:"max"`
	InefficacyAlarm float64    `json:"inefficacyAlarm"`
	ToxicityAlarm   float64    `json:"toxicityAlarm"`
}

type ActiveMoiety struct {
	ID      string             `json:"id"`
	Name    TranslatableString `json:"name"`
	Unit    string             `json:"unit"`
	Targets []TargetDefinition `json:"targets"`
}

// Bounds is an inclusive validation interval
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type CovariateDefinition struct {
	ID         string             `json:"id"`
	Name       TranslatableString `json:"name"`
	Unit       string             `json:"unit"`
	DataType   string             `json:"dataType"`
	Default    string             `json:"default"`
	Validation *Bounds            `json:"validation,omitempty"`
}

// DoseRange is an evenly stepped range of registered doses
type DoseRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
	Step float64 `json:"step"`
}

// AvailableDoses lists the doses registered for the drug
type AvailableDoses struct {
	Unit  string     `json:"unit"`
	Fixed []float64  `json:"fixed,omitempty"`
	Range *DoseRange `json:"range,omitempty"`
}

// Limits returns the smallest and largest registered dose
func (a AvailableDoses) Limits() (min, max float64, ok bool) {
	values := append([]float64(nil), a.Fixed...)
	if a.Range != nil {
		values = append(values, a.Range.From, a.Range.To)
	}
	if len(values) == 0 {
		return 0, 0, false
	}
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, true
}

// DrugModel is the subset of a drug model a report needs
type DrugModel struct {
	ID              string                `json:"id"`
	DrugID          string                `json:"drugId"`
	ActiveSubstance string                `json:"activeSubstance"`
	ATC             string                `json:"atc"`
	Brands          []string              `json:"brands"`
	Name            TranslatableString    `json:"name"`
	Description     TranslatableString    `json:"description"`
	Author          string                `json:"author"`
	ActiveMoieties  []ActiveMoiety        `json:"activeMoieties"`
	Covariates      []CovariateDefinition `json:"covariates"`
	AvailableDoses  AvailableDoses        `json:"availableDoses"`
}

// Covariate returns the definition with the given id
func (m *DrugModel) Covariate(id string) (CovariateDefinition, bool) {
	for _, c := range m.Covariates {
		if c.ID == id {
			return c, true
		}
	}
	return CovariateDefinition{}, false
}

// FindTarget searches the targets of an active moiety by type
func (m *DrugModel) FindTarget(moietyID string, t TargetType) (TargetDefinition, bool) {
	for _, am := range m.ActiveMoieties {
		if am.ID != moietyID {
			continue
		}
		for _, target := range am.Targets {
			if target.Type == t {
				return target, true
			}
		}
	}
	return TargetDefinition{}, false
}
