// Package render substitutes typed field values into template bodies.
package render

import (
	"html"
	"regexp"
	"strings"

	"docsign/internal/models"
)

var (
	placeholderRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)
	tokenRE       = regexp.MustCompile(`\{\{[^}]*\}\}`)
)

// Render replaces every {{name}} in body with the formatted, HTML-escaped
// value of name. Placeholders without a value and any other {{...}} token are
// removed. The body itself is trusted markup and is not escaped.
func Render(body string, fields []models.TemplateField, values map[string]string, f *Formatter) string {
	if f == nil {
		f = DefaultFormatter()
	}

	types := make(map[string]models.FieldType, len(fields))
	for _, field := range fields {
		types[field.Name] = field.Type
	}

	resolved := make(map[string]string, len(values))
	for name, raw := range values {
		if raw == "" {
			continue
		}
		fieldType, ok := types[name]
		if !ok {
			fieldType = models.FieldText
		}
		resolved[name] = html.EscapeString(f.Format(fieldType, raw))
	}

	// Single pass so substituted values are never rescanned for tokens.
	return tokenRE.ReplaceAllStringFunc(body, func(token string) string {
		match := placeholderRE.FindStringSubmatch(token)
		if len(match) != 2 || match[0] != token {
			return ""
		}
		return resolved[match[1]]
	})
}

// Placeholders lists the distinct placeholder names in body in first-seen order.
func Placeholders(body string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, match := range placeholderRE.FindAllStringSubmatch(body, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// LabelFor derives a human label from a placeholder name: "valor_total" → "Valor total".
func LabelFor(name string) string {
	s := strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if s == "" {
		return name
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
