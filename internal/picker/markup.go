package picker

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"
)

//go:embed templates/surface.html
var templateFS embed.FS

var surfaceTemplate = template.Must(template.New("surface.html").Funcs(template.FuncMap{
	"squareClass": squareClass,
}).ParseFS(templateFS, "templates/surface.html"))

// Markup renders c as the surface's HTML.
func Markup(c Calendar) (template.HTML, error) {
	var buf bytes.Buffer
	if err := surfaceTemplate.ExecuteTemplate(&buf, "surface", c); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// squareClass keys the weekday class on the real weekday, so custom day
// labels never reach the class attribute.
func squareClass(sq Square) string {
	classes := []string{"dp-square", "dp-wd-" + strconv.Itoa(int(sq.Date.Weekday()))}
	if sq.HasEvent {
		classes = append(classes, "dp-event")
	}
	if sq.Outside {
		classes = append(classes, "dp-outside-current-month")
	}
	if !sq.Empty {
		classes = append(classes, "dp-num")
	}
	if sq.Selected {
		classes = append(classes, "dp-active")
	}
	if sq.Disabled {
		classes = append(classes, "dp-disabled")
	}
	if sq.Today {
		classes = append(classes, "dp-current")
	}
	if sq.Weekend {
		classes = append(classes, "dp-weekend")
	}
	if sq.Range != RangeNone {
		classes = append(classes, "dp-range-"+string(sq.Range))
	}
	if sq.Empty {
		classes = append(classes, "dp-empty")
	}
	return strings.Join(classes, " ")
}
