package export

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/giygas/tdm-reports/projection"
	"github.com/giygas/tdm-reports/translation"
)

//go:embed templates/report.html.tmpl
var reportTemplate string

//go:embed assets
var assets embed.FS

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"dict": dict,
	"inc":  func(i int) int { return i + 1 },
}).Parse(reportTemplate))

// payloads inlined into every document
var (
	inlineCSS    template.CSS
	inlineScript template.JS
	inlineLogo   template.URL
)

func init() {
	css, err := assets.ReadFile("assets/report.css")
	if err != nil {
		panic(fmt.Sprintf("export: missing stylesheet: %v", err))
	}
	js, err := assets.ReadFile("assets/report.js")
	if err != nil {
		panic(fmt.Sprintf("export: missing script: %v", err))
	}
	logo, err := assets.ReadFile("assets/logo.svg")
	if err != nil {
		panic(fmt.Sprintf("export: missing logo: %v", err))
	}
	inlineCSS = template.CSS(css)
	inlineScript = template.JS(js)
	inlineLogo = template.URL("data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(logo))
}

// htmlView is the data handed to the template
type htmlView struct {
	Report *projection.Report
	CSS    template.CSS
	Script template.JS
	Logo   template.URL
	Series []htmlSeries
	tr     translation.Translator
}

type htmlSeries struct {
	Label          string
	Best           bool
	Times          template.JS
	Concentrations template.JS
}

// T translates a label key
func (v *htmlView) T(key string) string {
	return v.tr.Translate(key)
}

// RenderHTML fills the report template. Empty sections show the translated
// "none" placeholder.
func RenderHTML(r *projection.Report, tr translation.Translator) ([]byte, error) {
	view := &htmlView{
		Report: r,
		CSS:    inlineCSS,
		Script: inlineScript,
		Logo:   inlineLogo,
		tr:     tr,
	}
	for _, g := range r.Graph {
		// Comma joined numbers produced by projection.JoinNumbers
		view.Series = append(view.Series, htmlSeries{
			Label:          g.Label,
			Best:           g.Best,
			Times:          template.JS(g.Times),
			Concentrations: template.JS(g.Concentrations),
		})
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render HTML report: %w", err)
	}
	return buf.Bytes(), nil
}

func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs key/value pairs")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
