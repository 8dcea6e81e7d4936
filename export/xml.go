package export

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/giygas/tdm-reports/posology"
	"github.com/giygas/tdm-reports/projection"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

const (
	xsiNamespace   = "http://www.w3.org/2001/XMLSchema-instance"
	outputSchema   = "tuberxpert_output.xsd"
	xmlDateLayout  = "2006-01-02T15:04:05"
	xmlIndentation = "    "
)

// Element tree of the XML deliverable. Sections are always present, optional
// scalar parts are omitted when absent.

type xmlResult struct {
	XMLName               xml.Name                 `xml:"tuberxpertResult"`
	XSI                   string                   `xml:"xmlns:xsi,attr"`
	Schema                string                   `xml:"xsi:noNamespaceSchemaLocation,attr"`
	Language              string                   `xml:"lang,attr"`
	ComputationTime       string                   `xml:"computationTime"`
	Drug                  xmlDrug                  `xml:"drug"`
	Admin                 xmlAdmin                 `xml:"admin"`
	Covariates            xmlCovariates            `xml:"covariates"`
	Treatment             xmlTreatment             `xml:"treatment"`
	Samples               xmlSamples               `xml:"samples"`
	Adjustments           xmlAdjustments           `xml:"adjustments"`
	Parameters            xmlParameters            `xml:"pkParameters"`
	Statistics            xmlStatistics            `xml:"statistics"`
	ComputationCovariates xmlComputationCovariates `xml:"computationCovariates"`
}

type xmlDrug struct {
	DrugID          string   `xml:"drugId"`
	DrugModelID     string   `xml:"drugModelId"`
	ActiveSubstance string   `xml:"activeSubstance"`
	ATC             string   `xml:"atc"`
	Brands          []string `xml:"brands>brand"`
	Name            string   `xml:"name"`
	Description     string   `xml:"description"`
	Author          string   `xml:"author"`
}

type xmlAdmin struct {
	Mandator     *xmlPerson       `xml:"mandator,omitempty"`
	Patient      *xmlPerson       `xml:"patient,omitempty"`
	ClinicalData xmlClinicalDatas `xml:"clinicalDatas"`
}

type xmlClinicalDatas struct {
	Items []xmlClinicalData `xml:"clinicalData"`
}

type xmlPerson struct {
	ID        string        `xml:"id,omitempty"`
	Title     string        `xml:"title,omitempty"`
	FirstName string        `xml:"firstName,omitempty"`
	LastName  string        `xml:"lastName,omitempty"`
	Address   *xmlAddress   `xml:"address,omitempty"`
	Phone     *xmlPhone     `xml:"phone,omitempty"`
	Email     *xmlEmail     `xml:"email,omitempty"`
	Institute *xmlInstitute `xml:"institute,omitempty"`
}

type xmlInstitute struct {
	ID      string      `xml:"id,omitempty"`
	Name    string      `xml:"name"`
	Address *xmlAddress `xml:"address,omitempty"`
	Phone   *xmlPhone   `xml:"phone,omitempty"`
	Email   *xmlEmail   `xml:"email,omitempty"`
}

type xmlAddress struct {
	Street   string `xml:"street"`
	PostCode string `xml:"postCode"`
	City     string `xml:"city"`
	State    string `xml:"state,omitempty"`
	Country  string `xml:"country"`
}

type xmlPhone struct {
	Number string `xml:"number"`
	Type   string `xml:"type,omitempty"`
}

type xmlEmail struct {
	Address string `xml:"address"`
	Type    string `xml:"type,omitempty"`
}

type xmlClinicalData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

type xmlWarning struct {
	Level string `xml:"level,attr"`
	Text  string `xml:",chardata"`
}

type xmlCovariates struct {
	Items []xmlCovariate `xml:"covariate"`
}

type xmlCovariate struct {
	ID       string      `xml:"covariateId"`
	Name     string      `xml:"name"`
	Date     string      `xml:"date"`
	Value    string      `xml:"value"`
	Unit     string      `xml:"unit"`
	DataType string      `xml:"dataType"`
	Warning  *xmlWarning `xml:"warning,omitempty"`
}

type xmlTreatment struct {
	LastDose      *xmlLastDose     `xml:"lastDose,omitempty"`
	DosageHistory xmlDosageHistory `xml:"dosageHistory"`
}

type xmlLastDose struct {
	Value string `xml:"value"`
	Unit  string `xml:"unit"`
	Route string `xml:"route"`
	Date  string `xml:"date"`
}

type xmlDosageHistory struct {
	TimeRanges []xmlTimeRange `xml:"dosageTimeRange"`
}

type xmlTimeRange struct {
	Start      string   `xml:"start"`
	End        string   `xml:"end"`
	DosageType string   `xml:"dosageType"`
	Doses      xmlDoses `xml:"doses"`
}

type xmlDoses struct {
	Items []xmlDose `xml:"dose"`
}

type xmlDose struct {
	Value        string      `xml:"value"`
	Unit         string      `xml:"unit"`
	Route        string      `xml:"route"`
	InfusionTime string      `xml:"infusionTimeInMinutes"`
	Posology     string      `xml:"posology"`
	Warning      *xmlWarning `xml:"warning,omitempty"`
}

type xmlSamples struct {
	Items []xmlSample `xml:"sample"`
}

type xmlSample struct {
	ID         string      `xml:"sampleId"`
	Date       string      `xml:"sampleDate"`
	AnalyteID  string      `xml:"analyteId"`
	Value      string      `xml:"concentration"`
	Unit       string      `xml:"unit"`
	Percentile string      `xml:"percentile,omitempty"`
	Warning    *xmlWarning `xml:"warning,omitempty"`
}

type xmlAdjustments struct {
	Items []xmlAdjustment `xml:"adjustment"`
}

type xmlAdjustment struct {
	Best          bool             `xml:"best,attr"`
	Score         string           `xml:"score"`
	Targets       []xmlTarget      `xml:"targetEvaluations>targetEvaluation"`
	DosageHistory xmlDosageHistory `xml:"dosageHistory"`
	Cycles        []xmlCycle       `xml:"cycles>cycle"`
}

type xmlTarget struct {
	ActiveMoietyID  string `xml:"activeMoietyId"`
	TargetType      string `xml:"targetType"`
	Unit            string `xml:"unit"`
	Value           string `xml:"value"`
	Score           string `xml:"score"`
	Min             string `xml:"min"`
	Best            string `xml:"best"`
	Max             string `xml:"max"`
	InefficacyAlarm string `xml:"inefficacyAlarm"`
	ToxicityAlarm   string `xml:"toxicityAlarm"`
}

type xmlCycle struct {
	Start          string `xml:"start"`
	Unit           string `xml:"unit"`
	Times          string `xml:"times"`
	Concentrations string `xml:"concentrations"`
}

type xmlParameters struct {
	Items []xmlParameter `xml:"parameter"`
}

type xmlParameter struct {
	ID          string `xml:"id"`
	Unit        string `xml:"unit,omitempty"`
	Typical     string `xml:"typical,omitempty"`
	Apriori     string `xml:"apriori,omitempty"`
	Aposteriori string `xml:"aposteriori,omitempty"`
}

type xmlStatistics struct {
	AUC24    string `xml:"auc24"`
	Peak     string `xml:"peak"`
	Residual string `xml:"residual"`
	Unit     string `xml:"unit"`
	AUCUnit  string `xml:"aucUnit"`
}

type xmlComputationCovariates struct {
	Items []xmlComputationCovariate `xml:"covariate"`
}

type xmlComputationCovariate struct {
	ID    string `xml:"covariateId"`
	Value string `xml:"value"`
	Unit  string `xml:"unit"`
}

// RenderXML serializes a report. The output only depends on the report, so
// the same result always yields the same bytes.
func RenderXML(r *projection.Report) ([]byte, error) {
	doc := buildXML(r)
	out, err := xml.MarshalIndent(doc, "", xmlIndentation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal XML: %w", err)
	}

	result := make([]byte, 0, len(xml.Header)+len(out)+1)
	result = append(result, xml.Header...)
	result = append(result, out...)
	result = append(result, '\n')
	return result, nil
}

func buildXML(r *projection.Report) *xmlResult {
	doc := &xmlResult{
		XSI:             xsiNamespace,
		Schema:          outputSchema,
		Language:        r.Header.Language,
		ComputationTime: xmlDate(r.Header.ComputationTime),
		Drug: xmlDrug{
			DrugID:          r.Drug.DrugID,
			DrugModelID:     r.Drug.DrugModelID,
			ActiveSubstance: r.Drug.ActiveSubstance,
			ATC:             r.Drug.ATC,
			Brands:          r.Drug.BrandList,
			Name:            r.Drug.Name,
			Description:     r.Drug.Description,
			Author:          r.Drug.Author,
		},
		Admin: xmlAdmin{
			Mandator: xmlPersonOf(r.Mandator),
			Patient:  xmlPersonOf(r.Patient),
		},
		Treatment: xmlTreatment{
			DosageHistory: xmlHistory(r.Treatment.TimeRanges),
		},
		Statistics: xmlStatistics{
			AUC24:    rawNumber(r.Predictions.AUC24),
			Peak:     rawNumber(r.Predictions.Peak),
			Residual: rawNumber(r.Predictions.Residual),
			Unit:     r.Predictions.Unit,
			AUCUnit:  r.Predictions.AUCUnit,
		},
	}

	for _, cd := range r.ClinicalData {
		doc.Admin.ClinicalData.Items = append(doc.Admin.ClinicalData.Items, xmlClinicalData{Key: cd.Key, Value: cd.Value})
	}

	for _, c := range r.Covariates {
		doc.Covariates.Items = append(doc.Covariates.Items, xmlCovariate{
			ID:       c.ID,
			Name:     c.Name,
			Date:     xmlDate(c.Date),
			Value:    c.Value,
			Unit:     c.Unit,
			DataType: c.DataType,
			Warning:  xmlWarningOf(c.Warning, c.WarningLevel),
		})
	}

	if ld := r.Treatment.LastDose; ld != nil {
		doc.Treatment.LastDose = &xmlLastDose{
			Value: rawNumber(ld.Amount),
			Unit:  ld.Unit,
			Route: ld.Route.String(),
			Date:  xmlDate(ld.Date),
		}
	}

	for _, s := range r.Samples {
		sample := xmlSample{
			ID:        s.ExternalID,
			Date:      xmlDate(s.Date),
			AnalyteID: s.AnalyteID,
			Value:     rawNumber(s.Value),
			Unit:      s.Unit,
			Warning:   xmlWarningOf(s.Warning, s.WarningLevel),
		}
		if s.Percentile != nil {
			sample.Percentile = rawNumber(*s.Percentile)
		}
		doc.Samples.Items = append(doc.Samples.Items, sample)
	}

	for _, a := range r.Adjustments {
		adj := xmlAdjustment{
			Best:          a.Best,
			Score:         rawNumber(a.Score),
			DosageHistory: xmlHistory(a.TimeRanges),
		}
		for _, t := range a.Targets {
			adj.Targets = append(adj.Targets, xmlTarget{
				ActiveMoietyID:  t.ActiveMoietyID,
				TargetType:      string(t.Type),
				Unit:            t.Unit,
				Value:           rawNumber(t.Value),
				Score:           rawNumber(t.Score),
				Min:             rawNumber(t.Min),
				Best:            rawNumber(t.Best),
				Max:             rawNumber(t.Max),
				InefficacyAlarm: t.InefficacyText,
				ToxicityAlarm:   t.ToxicityText,
			})
		}
		for _, g := range r.Graph {
			if g.Adjustment == a.Index {
				adj.Cycles = append(adj.Cycles, xmlCycle{Start: xmlDate(g.Start), Unit: g.Unit, Times: g.Times, Concentrations: g.Concentrations})
			}
		}
		doc.Adjustments.Items = append(doc.Adjustments.Items, adj)
	}

	for _, p := range r.Parameters {
		doc.Parameters.Items = append(doc.Parameters.Items, xmlParameter{
			ID:          p.ID,
			Unit:        p.Unit,
			Typical:     optionalRaw(p.Typical),
			Apriori:     optionalRaw(p.Apriori),
			Aposteriori: optionalRaw(p.Aposteriori),
		})
	}

	for _, c := range r.ComputationCovariates {
		doc.ComputationCovariates.Items = append(doc.ComputationCovariates.Items, xmlComputationCovariate{
			ID:    c.ID,
			Value: rawNumber(c.Value),
			Unit:  c.Unit,
		})
	}

	return doc
}

func xmlHistory(ranges []projection.TimeRangeView) xmlDosageHistory {
	var h xmlDosageHistory
	for _, tr := range ranges {
		x := xmlTimeRange{
			Start:      xmlDate(tr.Start),
			End:        xmlDate(tr.End),
			DosageType: tr.RegimenLabel,
		}
		for _, leaf := range tr.Leaves {
			x.Doses.Items = append(x.Doses.Items, xmlDoseOf(leaf))
		}
		h.TimeRanges = append(h.TimeRanges, x)
	}
	return h
}

func xmlDoseOf(leaf posology.LeafRecord) xmlDose {
	return xmlDose{
		Value:        rawNumber(leaf.Amount),
		Unit:         leaf.Unit,
		Route:        leaf.Route.String(),
		InfusionTime: strconv.Itoa(int(leaf.InfusionTime / time.Minute)),
		Posology:     leaf.DisplayChain,
		Warning:      xmlWarningOf(leaf.Warning, leaf.WarningLevel),
	}
}

func xmlPersonOf(c *projection.Contact) *xmlPerson {
	if c == nil {
		return nil
	}
	p := &xmlPerson{
		ID:        c.ID,
		Title:     c.Title,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Address:   xmlAddressOf(c.Address),
		Phone:     xmlPhoneOf(c.Phone),
		Email:     xmlEmailOf(c.Email),
	}
	if inst := c.Institute; inst != nil {
		p.Institute = &xmlInstitute{
			ID:      inst.ID,
			Name:    inst.Name,
			Address: xmlAddressOf(inst.Address),
			Phone:   xmlPhoneOf(inst.Phone),
			Email:   xmlEmailOf(inst.Email),
		}
	}
	return p
}

func xmlAddressOf(a *entities.Address) *xmlAddress {
	if a == nil {
		return nil
	}
	return &xmlAddress{Street: a.Street, PostCode: a.PostCode, City: a.City, State: a.State, Country: a.Country}
}

func xmlPhoneOf(p *entities.Phone) *xmlPhone {
	if p == nil {
		return nil
	}
	return &xmlPhone{Number: p.Number, Type: p.Type}
}

func xmlEmailOf(e *entities.Email) *xmlEmail {
	if e == nil {
		return nil
	}
	return &xmlEmail{Address: e.Address, Type: e.Type}
}

func xmlWarningOf(text string, level entities.WarningLevel) *xmlWarning {
	if text == "" {
		return nil
	}
	return &xmlWarning{Level: level.String(), Text: text}
}

func xmlDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(xmlDateLayout)
}

// rawNumber keeps the full precision without exponent, 400 stays "400"
func rawNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalRaw(v *float64) string {
	if v == nil {
		return ""
	}
	return rawNumber(*v)
}
