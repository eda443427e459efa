package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

//go:embed templates/*.txt templates/*.html
var templateFS embed.FS

// Renderer produces the text and HTML bodies for a kind.
type Renderer interface {
	Render(kind Kind, data Data) (text, html string, err error)
}

// TemplateRenderer renders the embedded template pairs.
type TemplateRenderer struct {
	text *template.Template
	html *htmltemplate.Template
}

// NewTemplateRenderer parses the embedded templates. Dates are printed in loc.
func NewTemplateRenderer(loc *time.Location) (*TemplateRenderer, error) {
	formatDate := func(t time.Time) string {
		return t.In(loc).Format("02.01.2006 um 15:04 Uhr")
	}
	formatPrice := func(p float64) string {
		if p == 0 {
			return "kostenlos"
		}
		return fmt.Sprintf("%.2f €", p)
	}

	text, err := template.New("text").
		Funcs(template.FuncMap{"date": formatDate, "price": formatPrice}).
		ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmltemplate.New("html").
		Funcs(htmltemplate.FuncMap{"date": formatDate, "price": formatPrice}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &TemplateRenderer{text: text, html: html}, nil
}

// Render executes <kind>.txt and <kind>.html.
func (r *TemplateRenderer) Render(kind Kind, data Data) (string, string, error) {
	var txt, html bytes.Buffer
	if err := r.text.ExecuteTemplate(&txt, string(kind)+".txt", data); err != nil {
		return "", "", fmt.Errorf("render %s.txt: %w", kind, err)
	}
	if err := r.html.ExecuteTemplate(&html, string(kind)+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s.html: %w", kind, err)
	}
	return txt.String(), html.String(), nil
}
