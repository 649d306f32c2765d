package loader

import (
	"fmt"
	"regexp"
	"strings"
)

// RefResolver maps a model name used in ref() to the table name it builds.
type RefResolver interface {
	ResolveRef(name string) (string, bool)
}

var (
	templateComment   = regexp.MustCompile(`(?s)\{#.*?#\}`)
	templateStatement = regexp.MustCompile(`(?s)\{%.*?%\}`)
	templateExpr      = regexp.MustCompile(`(?s)\{\{-?\s*(.*?)\s*-?\}\}`)

	refCall    = regexp.MustCompile(`^ref\s*\(\s*['"][^'"]+['"](\s*,\s*['"][^'"]+['"])?\s*\)$`)
	sourceCall = regexp.MustCompile(`^source\s*\(\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]\s*\)$`)
	configCall = regexp.MustCompile(`(?s)^config\s*\(.*\)$`)
	quotedArg  = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

// Render turns a model file into plain SQL. Frontmatter, {# #} comments and
// {% %} statement tags are dropped; {{ ref('m') }} becomes the table of model
// m (or m itself when unknown), {{ source('s', 't') }} becomes s.t and
// {{ config(...) }} is removed. Any other expression is an error.
func Render(content string, resolver RefResolver) (string, error) {
	sql := StripFrontmatter(content)
	sql = templateComment.ReplaceAllString(sql, "")
	sql = templateStatement.ReplaceAllString(sql, "")

	var renderErr error
	sql = templateExpr.ReplaceAllStringFunc(sql, func(block string) string {
		inner := templateExpr.FindStringSubmatch(block)[1]
		switch {
		case refCall.MatchString(inner):
			args := quotedArg.FindAllStringSubmatch(inner, -1)
			name := args[len(args)-1][1]
			if resolver != nil {
				if table, ok := resolver.ResolveRef(name); ok {
					return table
				}
			}
			return name
		case sourceCall.MatchString(inner):
			m := sourceCall.FindStringSubmatch(inner)
			return m[1] + "." + m[2]
		case configCall.MatchString(inner):
			return ""
		default:
			if renderErr == nil {
				renderErr = fmt.Errorf("unsupported template expression %s", block)
			}
			return block
		}
	})
	if renderErr != nil {
		return "", renderErr
	}
	return strings.TrimSpace(sql), nil
}
