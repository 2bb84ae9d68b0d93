package views

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"markdown": markdown,
		"join":     strings.Join,
		"year":     func() int { return time.Now().Year() },
	}
}

// markdown converts project text to HTML. goldmark drops raw HTML unless
// told otherwise, so the result is safe to mark as template.HTML.
func markdown(s string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}
