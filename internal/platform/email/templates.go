package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").Funcs(template.FuncMap{
	"banner": func(title, subtitle, from, to string) banner {
		return banner{Title: title, Subtitle: subtitle, From: template.CSS(from), To: template.CSS(to)}
	},
	"footer": func(line, stamp string) footer {
		return footer{Line: line, Stamp: stamp}
	},
	"field": func(label, value string) field {
		return field{Label: label, Value: value}
	},
	"rupees": rupees,
}).ParseFS(templateFS, "templates/*.html"))

type banner struct {
	Title    string
	Subtitle string
	From     template.CSS
	To       template.CSS
}

type footer struct {
	Line  string
	Stamp string
}

type field struct {
	Label string
	Value string
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}

func rupees(amount any) string {
	switch v := amount.(type) {
	case decimal.Decimal:
		return "₹" + v.StringFixed(2)
	case *decimal.Decimal:
		if v == nil {
			return ""
		}
		return "₹" + v.StringFixed(2)
	default:
		return fmt.Sprint(v)
	}
}
