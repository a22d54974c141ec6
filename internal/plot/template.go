package plot

import (
	"embed"
	"html/template"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("page.html").
		Funcs(template.FuncMap{
			// Colors only ever come from the fixed palette.
			"safeCSS": func(s string) template.CSS { return template.CSS(s) }, //nolint:gosec
		}).
		ParseFS(templateFS, "templates/page.html"),
)
