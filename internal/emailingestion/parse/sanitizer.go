package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer cleans untrusted HTML bodies. The concrete strategy is
// deliberately replaceable: the denylist below is acceptable for campaign
// content authored by the account owner, not for arbitrary third-party HTML.
type Sanitizer interface {
	SanitizeHTML(html string) string
}

// DenylistSanitizer strips a fixed set of dangerous elements and inline
// event handlers. Tag-pair removal only; it is not a full HTML sanitizer.
type DenylistSanitizer struct{}

var dangerousTagRes = func() []*regexp.Regexp {
	tags := []string{"script", "iframe", "object", "embed", "form"}
	res := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		res = append(res, regexp.MustCompile(fmt.Sprintf(`(?is)<%s\b[^>]*>.*?</%s>`, tag, tag)))
	}
	return res
}()

var (
	eventAttrRe = regexp.MustCompile(`(?i)\s+on\w+\s*=\s*("[^"]*"|'[^']*')`)
	jsSchemeRe  = regexp.MustCompile(`(?i)javascript:`)
)

func (DenylistSanitizer) SanitizeHTML(html string) string {
	if html == "" {
		return ""
	}
	sanitized := html
	for _, re := range dangerousTagRes {
		sanitized = re.ReplaceAllString(sanitized, "")
	}
	sanitized = eventAttrRe.ReplaceAllString(sanitized, "")
	sanitized = jsSchemeRe.ReplaceAllString(sanitized, "")
	return sanitized
}

var quotedBlockRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^(>.*\n?)+`),
	regexp.MustCompile(`(?m)^On [^\n]+ wrote:(?s:.*)$`),
	regexp.MustCompile(`(?m)^-{2,}\s*Original Message\s*-{2,}(?s:.*)$`),
}

var signatureRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^--\s*\n(?s:.*)$`),
	regexp.MustCompile(`(?im)^Best regards,(?s:.*)$`),
	regexp.MustCompile(`(?im)^Thanks,(?s:.*)$`),
	regexp.MustCompile(`(?im)^Sincerely,(?s:.*)$`),
}

// ExtractQuotedText returns the first quoted block found in a plain body,
// or "" when none matches.
func ExtractQuotedText(body string) string {
	for _, re := range quotedBlockRes {
		if m := re.FindString(body); m != "" {
			return m
		}
	}
	return ""
}

// CleanPlainBody removes quoted reply blocks, attribution lines and trailing
// signatures from a plain-text body. Best-effort pattern matching, not
// guaranteed complete.
func CleanPlainBody(body string) string {
	if body == "" {
		return ""
	}
	cleaned := body
	for _, re := range quotedBlockRes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	for _, re := range signatureRes {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	return strings.TrimSpace(cleaned)
}

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// PreviewText produces the short list-view preview of a body: tags stripped,
// whitespace collapsed, truncated with an ellipsis.
func PreviewText(body string, maxLength int) string {
	if body == "" {
		return "No content"
	}
	preview := body
	if strings.Contains(preview, "<") {
		preview = htmlTagRe.ReplaceAllString(preview, " ")
	}
	preview = strings.TrimSpace(whitespaceRe.ReplaceAllString(preview, " "))
	if preview == "" {
		return "No content"
	}
	if len(preview) > maxLength {
		preview = preview[:maxLength] + "..."
	}
	return preview
}
