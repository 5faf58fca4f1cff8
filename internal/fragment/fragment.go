// Package fragment extracts named blocks and templates from provider pages
// and fills template parameters. Providers mark up fragments with HTML
// comments:
//
//	<!--$beginblock$news$--> ... <!--$endblock$news$-->
//	<!--$begintemplate$card$--> ... <!--$endtemplate$card$-->
//	<!--$beginparam$title$--> ... <!--$endparam$title$-->
//
// Absence of a marker is never an error: extraction degrades to the empty
// string and substitution skips the parameter, with a warning log as the
// only side effect.
package fragment

import (
	"strings"

	"github.com/jonesrussell/goassemble/internal/logger"
)

// Param is one named template parameter. Parameters are passed as an ordered
// slice so substitution is deterministic: each replacement is applied against
// the text produced by the previous one.
type Param struct {
	Name  string
	Value string
}

// Engine performs block and template operations over page text.
type Engine struct {
	log logger.Logger
}

// NewEngine creates a fragment engine logging diagnostics to log.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: log}
}

// marker builds a delimiter comment such as "<!--$beginblock$news$-->".
func marker(prefix, kind, name string) string {
	return "<!--$" + prefix + kind + "$" + name + "$-->"
}

// ExtractBlock returns the text strictly between the begin and end markers
// of the named block, or "" when either marker is missing.
func (e *Engine) ExtractBlock(page, name string) string {
	return e.extract(page, "block", name)
}

// ExtractTemplate returns the text strictly between the begin and end
// markers of the named template, or "" when either marker is missing.
func (e *Engine) ExtractTemplate(page, name string) string {
	return e.extract(page, "template", name)
}

func (e *Engine) extract(page, kind, name string) string {
	begin := marker("begin", kind, name)
	end := marker("end", kind, name)

	i := strings.Index(page, begin)
	j := strings.Index(page, end)
	if i == -1 || j == -1 || j < i+len(begin) {
		e.log.Warn(kind+" not found",
			logger.String("name", name),
		)
		return ""
	}

	e.log.Debug("serving "+kind,
		logger.String("name", name),
	)
	return page[i+len(begin) : j]
}

// FillTemplate selects the named template from page (the whole page when
// name is empty) and substitutes the parameters in order. Each parameter's
// begin/end marker pair is replaced, markers included, by its value; a
// parameter whose markers are missing is skipped.
//
// When the selected template text is empty the result is the concatenation
// of all parameter values in order.
func (e *Engine) FillTemplate(page, name string, params []Param) string {
	text := page
	if name != "" {
		text = e.ExtractTemplate(page, name)
	}

	if text == "" {
		var b strings.Builder
		for _, p := range params {
			b.WriteString(p.Value)
		}
		return b.String()
	}

	for _, p := range params {
		begin := marker("begin", "param", p.Name)
		end := marker("end", "param", p.Name)

		i := strings.Index(text, begin)
		j := strings.Index(text, end)
		if i == -1 || j == -1 || j < i+len(begin) {
			continue
		}
		text = text[:i] + p.Value + text[j+len(end):]
	}
	return text
}
