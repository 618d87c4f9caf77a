package insight

import (
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/assetq/internal/schema"
)

// activated is the provisions cell value marking a live application license.
const activated = "Activated"

// renderer expands rule SQL templates against one schema resolution.
type renderer struct {
	roles    schema.Roles
	japanese []string
}

func (r renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"col":           r.col,
		"acol":          r.acol,
		"table":         schema.QuoteIdent,
		"anyActivated":  r.anyActivated,
		"activatedCase": r.activatedCase,
		"japaneseNames": r.japaneseNames,
	}
}

// render expands src. Unknown roles and missing application columns fail
// the whole template.
func (r renderer) render(name, src string) (string, error) {
	t, err := template.New(name).Funcs(r.funcs()).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, nil); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// col resolves "table.role" to a quoted column name.
func (r renderer) col(ref string) (string, error) {
	table, role, ok := strings.Cut(ref, ".")
	if !ok {
		return "", fmt.Errorf("column reference %q is not table.role", ref)
	}
	c, ok := r.roles.Col(table, schema.Role(role))
	if !ok {
		return "", fmt.Errorf("unknown role %q", ref)
	}
	return schema.QuoteIdent(c), nil
}

func (r renderer) acol(alias, ref string) (string, error) {
	c, err := r.col(ref)
	if err != nil {
		return "", err
	}
	return qualify(alias, c), nil
}

// appColumns returns the quoted provisions columns naming app.
func (r renderer) appColumns(alias, app string) ([]string, []string, error) {
	names := r.roles.Matching(schema.Provisions, app)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("no provisions column matches %q", app)
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = qualify(alias, schema.QuoteIdent(n))
	}
	return names, quoted, nil
}

func (r renderer) anyActivated(alias, app string) (string, error) {
	_, cols, err := r.appColumns(alias, app)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = " + quoteLiteral(activated)
	}
	return "(" + strings.Join(parts, " OR ") + ")", nil
}

// activatedCase yields the license variant of the first activated column,
// labelled by the column suffix after " - " in the original header.
func (r renderer) activatedCase(alias, app string) (string, error) {
	names, cols, err := r.appColumns(alias, app)
	if err != nil {
		return "", err
	}
	title := cases.Title(language.Und)
	var b strings.Builder
	b.WriteString("CASE")
	for i, c := range cols {
		fmt.Fprintf(&b, " WHEN %s = %s THEN %s", c, quoteLiteral(activated), quoteLiteral(title.String(variantLabel(names[i]))))
	}
	b.WriteString(" ELSE 'Unknown' END")
	return b.String(), nil
}

func (r renderer) japaneseNames() string {
	parts := make([]string, len(r.japanese))
	for i, n := range r.japanese {
		parts[i] = quoteLiteral(strings.ToLower(n))
	}
	return strings.Join(parts, ", ")
}

// variantLabel turns "Notion_-_Josys_inc" into "Josys inc".
func variantLabel(column string) string {
	if _, after, ok := strings.Cut(column, "_-_"); ok {
		column = after
	}
	return strings.ReplaceAll(column, "_", " ")
}

func qualify(alias, quoted string) string {
	if alias == "" {
		return quoted
	}
	return alias + "." + quoted
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// fill expands a message template such as "None of the {{.Base}} users".
// A malformed template is returned unexpanded.
func fill(msg string, data any) string {
	if !strings.Contains(msg, "{{") {
		return msg
	}
	t, err := template.New("msg").Parse(msg)
	if err != nil {
		return msg
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return msg
	}
	return b.String()
}
