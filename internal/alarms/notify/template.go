package notify

import (
	"errors"
	"strings"
	"text/template"
)

// DefaultTemplate renders a compact multi-line chat message.
const DefaultTemplate = `{{upper .Kind}} | {{.Site}}
{{.Message}}
alert #{{.AlertID}} at {{.RaisedAt}}
{{- with .Suggestion}}
-> {{.}}{{end}}`

// TemplateData is what a notification template can reference.
type TemplateData struct {
	Site       string
	AlertID    int64
	Kind       string
	KindLabel  string
	Message    string
	RaisedAt   string
	Suggestion string
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// Template renders notification text.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses tpl. An empty string selects DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert").Funcs(templateFuncs).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var sb strings.Builder
	if err := t.tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
