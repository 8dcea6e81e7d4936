// Package projection assembles the format-agnostic report view of a
// computed result. Every renderer consumes the same Report.
package projection

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/tdm-reports/posology"
	"github.com/giygas/tdm-reports/resultparser/entities"
	"github.com/giygas/tdm-reports/translation"
)

// ageCovariate is rendered in years computed from the birth date
const ageCovariate = "age"

var birthDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// BuildContext carries everything a projection needs. It is passed
// explicitly to every step and never stored on a renderer.
type BuildContext struct {
	Result     *entities.ComputedResult
	Translator translation.Translator
	// Language selects translatable drug model strings. Defaults to the
	// translator language, then to the request language.
	Language string
	// GeneratedAt is shown in the header. Zero means the computation time.
	GeneratedAt time.Time
}

func (bc *BuildContext) t(key string) string {
	return bc.Translator.Translate(key)
}

// Build checks the preconditions of the result and projects it
func Build(bc BuildContext) (*Report, error) {
	if bc.Result == nil {
		return nil, fmt.Errorf("no result to project")
	}
	if err := bc.Result.CheckPreconditions(); err != nil {
		return nil, err
	}
	if bc.Translator == nil {
		return nil, fmt.Errorf("no translator for result %s", bc.Result.ID)
	}
	if bc.Language == "" {
		bc.Language = translation.LanguageOf(bc.Translator)
	}
	if bc.Language == "" {
		bc.Language = bc.Result.Request.OutputLang
	}
	if bc.GeneratedAt.IsZero() {
		bc.GeneratedAt = bc.Result.ComputationTime
	}

	flattener := posology.New(bc.Translator, bc.Result.DoseValidations)

	report := &Report{
		Header:         buildHeader(&bc),
		Drug:           buildDrug(&bc),
		ClinicalData:   buildClinicalData(&bc),
		Covariates:     buildCovariates(&bc),
		Treatment:      buildTreatment(&bc, flattener),
		Samples:        buildSamples(&bc),
		BestAdjustment: -1,
		Parameters:     buildParameters(&bc),
		Predictions:    buildPredictions(&bc),
	}
	if admin := bc.Result.Admin; admin != nil {
		report.Mandator = buildContact(admin.Mandator)
		report.Patient = buildContact(admin.Patient)
	}

	report.Adjustments = buildAdjustments(&bc, flattener)
	if best, ok := bc.Result.BestCandidate(); ok {
		report.BestAdjustment = best
		report.Targets = report.Adjustments[best].Targets
		report.ComputationCovariates = buildComputationCovariates(&bc, bc.Result.Adjustments[best])
	}
	report.Graph = buildGraph(&bc)

	return report, nil
}

func buildHeader(bc *BuildContext) Header {
	return Header{
		Title:           bc.t("report_title"),
		Intro:           bc.t("report_intro"),
		Language:        bc.Language,
		GeneratedAt:     bc.GeneratedAt,
		GeneratedOn:     FormatDate(bc.GeneratedAt),
		ComputationTime: bc.Result.ComputationTime,
		ComputedOn:      FormatDate(bc.Result.ComputationTime),
	}
}

func buildDrug(bc *BuildContext) DrugInfo {
	m := bc.Result.DrugModel
	info := DrugInfo{
		DrugID:          orPlaceholder(bc.Result.Request.DrugID),
		DrugModelID:     orPlaceholder(m.ID),
		Name:            orPlaceholder(m.Name.Get(bc.Language)),
		ActiveSubstance: orPlaceholder(m.ActiveSubstance),
		ATC:             orPlaceholder(m.ATC),
		Brands:          orPlaceholder(strings.Join(m.Brands, ", ")),
		BrandList:       m.Brands,
		Description:     orPlaceholder(m.Description.Get(bc.Language)),
		Author:          orPlaceholder(m.Author),
	}
	if info.DrugID == Placeholder {
		info.DrugID = orPlaceholder(m.DrugID)
	}
	return info
}

func buildContact(p *entities.Person) *Contact {
	if p == nil {
		return nil
	}
	c := &Contact{
		ID:          p.ID,
		Title:       p.Title,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		FullName:    orPlaceholder(strings.TrimSpace(strings.Join(nonEmpty(p.Title, p.FirstName, p.LastName), " "))),
		Address:     p.Address,
		Phone:       p.Phone,
		Email:       p.Email,
		AddressText: addressText(p.Address),
		PhoneText:   phoneText(p.Phone),
		EmailText:   emailText(p.Email),
	}
	if inst := p.Institute; inst != nil {
		c.Institute = &InstituteView{
			ID:          inst.ID,
			Name:        orPlaceholder(inst.Name),
			Address:     inst.Address,
			Phone:       inst.Phone,
			Email:       inst.Email,
			AddressText: addressText(inst.Address),
			PhoneText:   phoneText(inst.Phone),
			EmailText:   emailText(inst.Email),
		}
	}
	return c
}

func addressText(a *entities.Address) string {
	if a == nil {
		return Placeholder
	}
	city := strings.TrimSpace(a.PostCode + " " + a.City)
	return orPlaceholder(strings.Join(nonEmpty(a.Street, city, a.State, a.Country), ", "))
}

func phoneText(p *entities.Phone) string {
	if p == nil {
		return Placeholder
	}
	return orPlaceholder(p.Number)
}

func emailText(e *entities.Email) string {
	if e == nil {
		return Placeholder
	}
	return orPlaceholder(e.Address)
}

func buildClinicalData(bc *BuildContext) []KeyValue {
	admin := bc.Result.Admin
	if admin == nil {
		return nil
	}
	out := make([]KeyValue, 0, len(admin.ClinicalData))
	for _, cd := range admin.ClinicalData {
		out = append(out, KeyValue{Key: cd.Key, Value: orPlaceholder(cd.Value)})
	}
	return out
}

func buildCovariates(bc *BuildContext) []CovariateRow {
	covariates := bc.Result.Treatment.Covariates
	out := make([]CovariateRow, 0, len(covariates))
	for _, c := range covariates {
		row := CovariateRow{
			ID:           c.CovariateID,
			Name:         covariateName(bc, c.CovariateID),
			Date:         c.Date,
			DateText:     FormatDate(c.Date),
			Value:        c.Value,
			DisplayValue: formatCovariateValue(c.Value),
			Unit:         c.Unit,
			DataType:     c.DataType,
		}
		if c.CovariateID == ageCovariate {
			if years, ok := AgeInYears(c.Value, bc.Result.ComputationTime); ok {
				row.DisplayValue = strconv.Itoa(years)
				row.Unit = bc.t("years")
			} else if v, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64); err == nil {
				// already a number of years
				row.DisplayValue = strconv.Itoa(int(v))
				row.Unit = bc.t("years")
			}
		}
		if v, ok := bc.Result.CovariateValidations[c.ID]; ok {
			row.Warning = v.Warning
			row.WarningLevel = v.Level
		}
		out = append(out, row)
	}
	return out
}

func covariateName(bc *BuildContext, id string) string {
	if def, ok := bc.Result.DrugModel.Covariate(id); ok {
		if name := def.Name.Get(bc.Language); name != "" {
			return name
		}
	}
	if id == ageCovariate {
		return bc.t("age")
	}
	return id
}

// formatCovariateValue shows numbers with two decimals, anything else as is
func formatCovariateValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Placeholder
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return FormatNumber(v)
	}
	return raw
}

// AgeInYears computes the age at instant from a birth date value
func AgeInYears(birthDate string, at time.Time) (int, bool) {
	var born time.Time
	parsed := false
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(birthDate)); err == nil {
			born, parsed = t, true
			break
		}
	}
	if !parsed || at.Before(born) {
		return 0, false
	}
	years := at.Year() - born.Year()
	if at.Month() < born.Month() || (at.Month() == born.Month() && at.Day() < born.Day()) {
		years--
	}
	return years, true
}

func buildTreatment(bc *BuildContext, f *posology.Flattener) TreatmentView {
	history := bc.Result.Treatment.DosageHistory
	view := TreatmentView{
		LastDoseText: Placeholder,
		TimeRanges:   buildTimeRanges(f, history),
	}
	if dose, at, ok := history.LastDose(); ok {
		ld := &LastDoseView{
			Amount: dose.Amount,
			Unit:   dose.Unit,
			Route:  dose.Route,
			Date:   at,
		}
		ld.Text = FormatNumber(dose.Amount) + " " + dose.Unit
		if dose.Route != entities.RouteUndefined {
			ld.RouteLabel = bc.t(dose.Route.String())
			ld.Text += " (" + ld.RouteLabel + ")"
		}
		ld.Text += ", " + FormatDate(at)
		view.LastDose = ld
		view.LastDoseText = ld.Text
	}
	return view
}

func buildTimeRanges(f *posology.Flattener, h entities.DosageHistory) []TimeRangeView {
	records := f.History(h)
	out := make([]TimeRangeView, 0, len(records))
	for _, rec := range records {
		out = append(out, TimeRangeView{
			TimeRangeRecord: rec,
			StartText:       FormatDate(rec.Start),
			EndText:         FormatDate(rec.End),
		})
	}
	return out
}

func buildSamples(bc *BuildContext) []SampleRow {
	samples := bc.Result.Treatment.Samples
	out := make([]SampleRow, 0, len(samples))
	for _, s := range samples {
		row := SampleRow{
			ID:             s.ID,
			ExternalID:     s.ExternalID,
			Date:           s.Date,
			DateText:       FormatDate(s.Date),
			AnalyteID:      s.AnalyteID,
			Value:          s.Value,
			ValueText:      FormatNumber(s.Value),
			Unit:           s.Unit,
			Percentile:     s.Percentile,
			PercentileText: Placeholder,
		}
		if s.Percentile != nil {
			row.PercentileText = FormatNumber(*s.Percentile)
		}
		if v, ok := bc.Result.SampleValidations[s.ID]; ok {
			row.Warning = v.Warning
			row.WarningLevel = v.Level
		}
		out = append(out, row)
	}
	return out
}

func buildAdjustments(bc *BuildContext, f *posology.Flattener) []AdjustmentView {
	best, _ := bc.Result.BestCandidate()
	out := make([]AdjustmentView, 0, len(bc.Result.Adjustments))
	for i, c := range bc.Result.Adjustments {
		view := AdjustmentView{
			Index:      i,
			Best:       i == best,
			Score:      c.Score,
			ScoreText:  FormatNumber(c.Score),
			TimeRanges: buildTimeRanges(f, c.DosageHistory),
			Targets:    make([]TargetView, 0, len(c.Targets)),
		}
		for _, te := range c.Targets {
			view.Targets = append(view.Targets, buildTarget(bc, te))
		}
		out = append(out, view)
	}
	return out
}

// buildTarget fills missing alarms from the drug model target definition
func buildTarget(bc *BuildContext, te entities.TargetEvaluation) TargetView {
	v := TargetView{
		ActiveMoietyID:  te.ActiveMoietyID,
		ActiveMoiety:    activeMoietyName(bc, te.ActiveMoietyID),
		Type:            te.Type,
		TypeLabel:       bc.t(string(te.Type)),
		Unit:            te.Unit,
		Value:           te.Value,
		ValueText:       FormatNumber(te.Value),
		Score:           te.Score,
		ScoreText:       FormatNumber(te.Score),
		Min:             te.Min,
		MinText:         FormatNumber(te.Min),
		Best:            te.Best,
		BestText:        FormatNumber(te.Best),
		Max:             te.Max,
		MaxText:         FormatNumber(te.Max),
		InefficacyAlarm: te.InefficacyAlarm,
		ToxicityAlarm:   te.ToxicityAlarm,
	}

	// TODO: drop the drug model lookup once the engine always reports alarms on evaluations
	if v.InefficacyAlarm == nil || v.ToxicityAlarm == nil {
		if def, ok := bc.Result.DrugModel.FindTarget(te.ActiveMoietyID, te.Type); ok {
			if v.InefficacyAlarm == nil {
				v.InefficacyAlarm = &def.InefficacyAlarm
			}
			if v.ToxicityAlarm == nil {
				v.ToxicityAlarm = &def.ToxicityAlarm
			}
		}
	}

	v.InefficacyText = alarmText(bc, v.InefficacyAlarm)
	v.ToxicityText = alarmText(bc, v.ToxicityAlarm)
	return v
}

func alarmText(bc *BuildContext, alarm *float64) string {
	if alarm == nil {
		return bc.t("unknown")
	}
	return FormatNumber(*alarm)
}

func activeMoietyName(bc *BuildContext, id string) string {
	for _, am := range bc.Result.DrugModel.ActiveMoieties {
		if am.ID == id {
			if name := am.Name.Get(bc.Language); name != "" {
				return name
			}
		}
	}
	return orPlaceholder(id)
}

// buildParameters merges the three regimes by parameter id in order of
// first appearance
func buildParameters(bc *BuildContext) []ParameterRow {
	set := bc.Result.Parameters
	var rows []ParameterRow
	index := map[string]int{}

	row := func(p entities.ParameterValue) *ParameterRow {
		i, ok := index[p.ID]
		if !ok {
			i = len(rows)
			index[p.ID] = i
			rows = append(rows, ParameterRow{ID: p.ID, Unit: p.Unit})
		}
		if rows[i].Unit == "" {
			rows[i].Unit = p.Unit
		}
		return &rows[i]
	}

	for _, p := range set.Typical {
		v := p.Value
		row(p).Typical = &v
	}
	for _, p := range set.Apriori {
		v := p.Value
		row(p).Apriori = &v
	}
	for _, p := range set.Aposteriori {
		v := p.Value
		row(p).Aposteriori = &v
	}

	for i := range rows {
		rows[i].TypicalText = optionalNumber(rows[i].Typical)
		rows[i].AprioriText = optionalNumber(rows[i].Apriori)
		rows[i].AposterioriText = optionalNumber(rows[i].Aposteriori)
	}
	return rows
}

func buildPredictions(bc *BuildContext) PredictionView {
	s := bc.Result.Statistics
	return PredictionView{
		AUC24:        s.AUC24,
		Peak:         s.Peak,
		Residual:     s.Residual,
		Unit:         s.Unit,
		AUCUnit:      s.AUCUnit,
		AUC24Text:    FormatNumber(s.AUC24),
		PeakText:     FormatNumber(s.Peak),
		ResidualText: FormatNumber(s.Residual),
	}
}

func buildComputationCovariates(bc *BuildContext, c entities.AdjustmentCandidate) []ComputationCovariateRow {
	out := make([]ComputationCovariateRow, 0, len(c.ComputationCovariates))
	for _, cv := range c.ComputationCovariates {
		out = append(out, ComputationCovariateRow{
			ID:        cv.ID,
			Name:      covariateName(bc, cv.ID),
			Value:     cv.Value,
			ValueText: FormatNumber(cv.Value),
			Unit:      cv.Unit,
		})
	}
	return out
}

func buildGraph(bc *BuildContext) []GraphSeries {
	best, _ := bc.Result.BestCandidate()
	var out []GraphSeries
	for i, c := range bc.Result.Adjustments {
		for j, cycle := range c.Cycles {
			out = append(out, GraphSeries{
				Label:          fmt.Sprintf("%s %d", bc.t("adjustment"), i+1),
				Adjustment:     i,
				Cycle:          j,
				Best:           i == best,
				Start:          cycle.Start,
				Unit:           cycle.Unit,
				Times:          JoinNumbers(cycle.Times),
				Concentrations: JoinNumbers(cycle.Concentrations),
			})
		}
	}
	return out
}

// FormatNumber renders a value with two decimals
func FormatNumber(v float64) string {
	return posology.FormatAmount(v)
}

// FormatDate renders an instant for display, Placeholder when zero
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Format(posology.DisplayDateLayout)
}

// JoinNumbers renders a series as comma separated values
func JoinNumbers(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func optionalNumber(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return FormatNumber(*v)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
