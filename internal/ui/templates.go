package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/jw6ventures/calpicker/internal/picker"
)

//go:embed templates/*
var templateFS embed.FS

var templates = mustParseTemplates()

var funcMap = template.FuncMap{
	"anchorStyle": func(r picker.Rect) template.CSS {
		return template.CSS(fmt.Sprintf("top: %gpx; left: %gpx; width: %gpx; height: %gpx", r.Top, r.Left, r.Width, r.Height))
	},
	"sideLabel": func(role string) string {
		switch role {
		case roleStart:
			return "range start"
		case roleEnd:
			return "range end"
		}
		return ""
	},
}

func mustParseTemplates() map[string]*template.Template {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}

	base := template.Must(template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html"))

	sets := make(map[string]*template.Template)
	for _, file := range files {
		if file == "templates/base.html" {
			continue
		}

		set := template.Must(base.Clone())
		template.Must(set.ParseFS(templateFS, file))
		sets[file[len("templates/"):]] = set
	}

	return sets
}
