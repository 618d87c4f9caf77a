package oracle

import "strings"

// CleanSQL strips markdown code fences and a leading bare "sql" language
// tag from a model reply. The result is still untrusted text.
func CleanSQL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```SQL", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.EqualFold(s[:3], "sql") && (len(s) == 3 || isSpace(s[3])) {
		s = strings.TrimSpace(s[3:])
	}
	return s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
