package oracle

import (
	_ "embed"
	"strings"
	"text/template"
)

//go:embed prompt.tmpl
var promptText string

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

// JapaneseNames are the first names the prompt offers as a hint for
// locating Japanese employees when location data is missing.
var JapaneseNames = []string{
	"Tomoyo", "Mari", "Kohei", "Ayumi", "Seiji", "Yuya", "Makoto", "Michiko",
	"Ikumi", "Terumichi", "Eri", "Yuki", "Naomi", "Raku", "Tsuyoshi", "Kazuki",
	"Maho", "Satoshi", "Goki", "Takamitsu", "Yukinori", "Tomoya",
}

// BuildPrompt renders the completion prompt. Output is a pure function of
// its inputs.
func BuildPrompt(schema, question string) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Schema        string
		Question      string
		JapaneseNames string
	}{
		Schema:        schema,
		Question:      question,
		JapaneseNames: strings.Join(JapaneseNames, ", "),
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
