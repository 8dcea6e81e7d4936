// Package resultparser reads computed result documents produced by the
// computation engine and turns them into report-ready entities.
package resultparser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// Compile-time check to ensure ResultParser implements Parser interface
var _ interfaces.Parser = (*ResultParser)(nil)

// ErrNoRequests is returned for documents without any request
var ErrNoRequests = errors.New("document contains no requests")

// maxDocumentSize bounds the bytes read from one document
const maxDocumentSize = 32 << 20

// ResultParser implements the Parser interface
type ResultParser struct {
	// now is used when a document carries no computation time
	now func() time.Time
}

// NewResultParser creates a new ResultParser instance
func NewResultParser() *ResultParser {
	return &ResultParser{now: time.Now}
}

// ParseFile implements the Parser interface
func (p *ResultParser) ParseFile(path string) ([]*entities.ComputedResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("Failed to close result file", "path", path, "error", err)
		}
	}()

	results, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}

// Parse implements the Parser interface
func (p *ResultParser) Parse(r io.Reader) ([]*entities.ComputedResult, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if len(raw) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}

	// Some engines still write ISO-8859-1, read the content first
	if !utf8.Valid(raw) {
		logging.Debug("Document is not valid UTF-8, decoding as ISO-8859-1")
		raw, err = io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ISO-8859-1 document: %w", err)
		}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if len(doc.Requests) == 0 {
		return nil, ErrNoRequests
	}

	computed := doc.ComputationTime
	if computed.IsZero() {
		computed = p.now()
	}

	c := &converter{}

	var treatment *entities.Treatment
	if doc.Treatment != nil {
		history, err := c.history(doc.Treatment.DosageHistory)
		if err != nil {
			return nil, fmt.Errorf("treatment: %w", err)
		}
		treatment = &entities.Treatment{
			DosageHistory: history,
			Samples:       doc.Treatment.Samples,
			Covariates:    doc.Treatment.Covariates,
		}
		for i := range treatment.Samples {
			treatment.Samples[i].ID = entities.SampleID(i)
		}
		for i := range treatment.Covariates {
			treatment.Covariates[i].ID = entities.CovariateID(i)
		}
	}

	results := make([]*entities.ComputedResult, 0, len(doc.Requests))
	for i, req := range doc.Requests {
		result, err := c.result(req, i)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
		result.DrugModel = doc.DrugModel
		if result.Request.DrugModelID == "" && doc.DrugModel != nil {
			result.Request.DrugModelID = doc.DrugModel.ID
		}
		result.Treatment = treatment
		result.Admin = doc.Admin
		result.ComputationTime = computed
		results = append(results, result)
	}

	logging.Debug("Parsed result document", "requests", len(results), "doses", int(c.nextDose))
	return results, nil
}

// converter assigns synthetic identifiers while building entities. Dose IDs
// are unique within one document.
type converter struct {
	nextDose entities.DoseID
}

func (c *converter) result(req requestDTO, position int) (*entities.ComputedResult, error) {
	format := entities.FormatXML
	if req.OutputFormat != "" {
		f, err := entities.ParseOutputFormat(req.OutputFormat)
		if err != nil {
			return nil, err
		}
		format = f
	}

	index := position
	if req.Index != nil {
		index = *req.Index
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	result := &entities.ComputedResult{
		ID: id,
		Request: entities.Request{
			ID:           req.RequestID,
			Index:        index,
			DrugID:       req.DrugID,
			DrugModelID:  req.DrugModelID,
			OutputFormat: format,
			OutputLang:   strings.ToLower(req.OutputLang),
		},
		Parameters: req.Parameters,
		Statistics: req.Statistics,
	}

	for j, adj := range req.Adjustments {
		history, err := c.history(adj.DosageHistory)
		if err != nil {
			return nil, fmt.Errorf("adjustment %d: %w", j, err)
		}
		result.Adjustments = append(result.Adjustments, entities.AdjustmentCandidate{
			DosageHistory:         history,
			Score:                 adj.Score,
			Targets:               adj.Targets,
			Cycles:                adj.Cycles,
			ComputationCovariates: adj.ComputationCovariates,
		})
	}
	return result, nil
}

func (c *converter) history(ranges []timeRangeDTO) (entities.DosageHistory, error) {
	history := make(entities.DosageHistory, 0, len(ranges))
	for i, tr := range ranges {
		if tr.Dosage == nil {
			return nil, fmt.Errorf("time range %d has no dosage", i)
		}
		node, err := c.node(*tr.Dosage)
		if err != nil {
			return nil, fmt.Errorf("time range %d: %w", i, err)
		}
		history = append(history, entities.DosageTimeRange{Start: tr.Start, End: tr.End, Dosage: node})
	}
	return history, nil
}

func (c *converter) node(d dosageDTO) (entities.DosageNode, error) {
	switch d.Type {
	case "single":
		return c.dose(d)
	case "lasting":
		dose, err := c.dose(d)
		if err != nil {
			return nil, err
		}
		interval, err := parseDuration(d.Interval)
		if err != nil {
			return nil, fmt.Errorf("lasting dose interval: %w", err)
		}
		return entities.LastingDose{SingleDose: dose, Interval: interval}, nil
	case "daily":
		dose, err := c.dose(d)
		if err != nil {
			return nil, err
		}
		tod, err := entities.ParseTimeOfDay(d.Time)
		if err != nil {
			return nil, err
		}
		return entities.DailyDose{SingleDose: dose, TimeOfDay: tod}, nil
	case "weekly":
		dose, err := c.dose(d)
		if err != nil {
			return nil, err
		}
		if d.Day == nil || *d.Day < 0 || *d.Day > 6 {
			return nil, fmt.Errorf("weekly dose needs a day between 0 and 6")
		}
		tod, err := entities.ParseTimeOfDay(d.Time)
		if err != nil {
			return nil, err
		}
		return entities.WeeklyDose{SingleDose: dose, Day: time.Weekday(*d.Day), TimeOfDay: tod}, nil
	case "repeat":
		child, err := c.child(d)
		if err != nil {
			return nil, err
		}
		return entities.DosageRepeat{Iterations: d.Iterations, Child: child}, nil
	case "sequence":
		children, err := c.children(d.Children)
		if err != nil {
			return nil, err
		}
		return entities.DosageSequence{Children: children}, nil
	case "parallel":
		if len(d.Children) != len(d.Offsets) {
			return nil, fmt.Errorf("parallel sequence has %d children and %d offsets", len(d.Children), len(d.Offsets))
		}
		children, err := c.children(d.Children)
		if err != nil {
			return nil, err
		}
		offsets := make([]time.Duration, len(d.Offsets))
		for i, o := range d.Offsets {
			if offsets[i], err = parseDuration(o); err != nil {
				return nil, fmt.Errorf("parallel offset %d: %w", i, err)
			}
		}
		return entities.ParallelDosageSequence{Children: children, Offsets: offsets}, nil
	case "loop":
		child, err := c.child(d)
		if err != nil {
			return nil, err
		}
		return entities.DosageLoop{Child: child}, nil
	case "steadyState":
		child, err := c.child(d)
		if err != nil {
			return nil, err
		}
		return entities.DosageSteadyState{LastDoseTime: d.LastDoseTime, Child: child}, nil
	default:
		return nil, fmt.Errorf("unknown dosage type %q", d.Type)
	}
}

func (c *converter) dose(d dosageDTO) (entities.SingleDose, error) {
	route, err := entities.ParseRoute(d.Route)
	if err != nil {
		return entities.SingleDose{}, err
	}
	dose := entities.SingleDose{
		ID:           c.nextDose,
		Amount:       d.Amount,
		Unit:         d.Unit,
		Route:        route,
		InfusionTime: time.Duration(d.InfusionMinutes) * time.Minute,
	}
	c.nextDose++
	return dose, nil
}

func (c *converter) child(d dosageDTO) (entities.DosageNode, error) {
	if d.Child == nil {
		return nil, fmt.Errorf("%s node has no child", d.Type)
	}
	return c.node(*d.Child)
}

func (c *converter) children(in []dosageDTO) ([]entities.DosageNode, error) {
	out := make([]entities.DosageNode, 0, len(in))
	for _, child := range in {
		node, err := c.node(child)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

// parseDuration accepts Go durations ("12h") and clock offsets ("12:00")
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		minutes, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil || hours < 0 || minutes < 0 || minutes > 59 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
