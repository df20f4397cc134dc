package app

import (
	"regexp"
	"strings"
)

// tokenRe matches {{key}} substitution tokens, tolerating inner whitespace.
var tokenRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{key}} tokens with per-recipient values.
// Unknown tokens are left verbatim so authoring mistakes are visible in the
// delivered email rather than silently blanked.
func RenderTemplate(template string, vars map[string]string) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return tokenRe.ReplaceAllStringFunc(template, func(token string) string {
		key := tokenRe.FindStringSubmatch(token)[1]
		if value, ok := vars[key]; ok {
			return value
		}
		return token
	})
}
