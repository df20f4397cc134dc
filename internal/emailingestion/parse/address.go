package parse

import (
	"regexp"
	"strings"
)

// Mailbox is one parsed "Display Name <addr@host>" entry. Name is empty when
// the header carried a bare address.
type Mailbox struct {
	Name    string
	Address string
}

var (
	angleAddrRe = regexp.MustCompile(`<([^>]+)>`)
	bareAddrRe  = regexp.MustCompile(`[^\s,;<>]+@[^\s,;<>]+\.[^\s,;<>]+`)
)

// ParseAddress parses a single header entry. The address is taken from the
// first angle-bracket pair, falling back to a bare email token; the display
// name is whatever precedes the brackets, quotes stripped. Returns false when
// no parsable email is present.
func ParseAddress(raw string) (Mailbox, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Mailbox{}, false
	}

	if loc := angleAddrRe.FindStringSubmatchIndex(raw); loc != nil {
		addr := strings.TrimSpace(raw[loc[2]:loc[3]])
		if addr != "" {
			name := strings.TrimSpace(raw[:loc[0]])
			name = strings.TrimSpace(strings.Trim(name, `"`))
			return Mailbox{Name: name, Address: addr}, true
		}
	}

	if addr := bareAddrRe.FindString(raw); addr != "" {
		return Mailbox{Address: addr}, true
	}

	return Mailbox{}, false
}

// ParseAddressList parses a comma-separated address header, preserving
// left-to-right order. Entries without a parsable email are dropped silently.
func ParseAddressList(raw string) []Mailbox {
	var out []Mailbox
	for _, part := range splitAddressList(raw) {
		if mb, ok := ParseAddress(part); ok {
			out = append(out, mb)
		}
	}
	return out
}

// Addresses returns just the email addresses of a header value, in order.
func Addresses(raw string) []string {
	boxes := ParseAddressList(raw)
	if len(boxes) == 0 {
		return nil
	}
	addrs := make([]string, 0, len(boxes))
	for _, mb := range boxes {
		addrs = append(addrs, mb.Address)
	}
	return addrs
}

// splitAddressList splits on commas that are not inside double quotes, so
// `"Doe, Jane" <jane@x.com>` stays one entry.
func splitAddressList(raw string) []string {
	var (
		parts    []string
		start    int
		inQuotes bool
	)
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, raw[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, raw[start:])
	return parts
}
