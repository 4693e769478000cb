package at

import "strings"

// Payload extracts the record introduced by prefix from a raw modem
// response. It returns the text between the prefix and the end of the
// line, with surrounding whitespace removed, and reports whether the
// prefix was present at all.
//
// Modem responses are deliberately matched by substring rather than
// parsed exactly: the record of interest may be surrounded by echoed
// input, blank lines and the final OK.
func Payload(response, prefix string) (string, bool) {
	i := strings.Index(response, prefix)
	if i < 0 {
		return "", false
	}

	payload := response[i+len(prefix):]
	if j := strings.IndexAny(payload, CRLF); j >= 0 {
		payload = payload[:j]
	}
	return strings.TrimSpace(payload), true
}

// Fields splits a comma-separated record payload into its ordered
// fields. Every field is trimmed of spaces and stray CR/LF characters.
// Empty fields are preserved so positional contracts hold: callers rely
// on fixed field positions (e.g. CGNSINF places the datetime at
// position 2 and the coordinates at positions 3 and 4).
func Fields(payload string) []string {
	parts := strings.Split(payload, ",")
	fields := make([]string, len(parts))
	for i, p := range parts {
		fields[i] = strings.Trim(p, " \t\r\n")
	}
	return fields
}
