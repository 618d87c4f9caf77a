package insight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	r, err := DefaultRules()
	require.NoError(t, err)

	assert.Equal(t, 2, r.ComplexityThreshold)
	assert.Equal(t, "general_query", r.DefaultAnalysisType)
	assert.Len(t, r.Families, 4)
	assert.Len(t, r.Breakdowns, 12)
	assert.Len(t, r.CrossRefs, 4)
	assert.Equal(t, []string{"tomoyo", "mari", "kohei", "yuki", "akira"}, r.JapaneseNames)

	active := r.Sections[0].Items[0]
	assert.Equal(t, "Active Devices", active.Name)
	assert.Equal(t, KindCount, active.Kind)
	assert.True(t, active.HideZero)
	assert.Nil(t, active.When)

	assert.Equal(t, BaseAlways, r.CrossRefs[0].BaseWhen)
	assert.Equal(t, BaseNone, r.CrossRefs[2].BaseWhen)
	assert.True(t, r.CrossRefs[2].OmitOnError)
	for _, x := range r.CrossRefs {
		assert.NotEmpty(t, x.BaseSQL, x.Title)
	}
}

func TestLoadRules_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `families: [`},
		{"empty family name", `families: [{name: "", terms: ["x"]}]`},
		{"empty terms", `families: [{name: "x", terms: []}]`},
		{"unknown component field", `sections: [{name: "s", error_name: "e", when: {}, items: [{name: "n", icon: "", sql: "SELECT 1", colour: "red"}]}]`},
		{"bad kind", `sections: [{name: "s", error_name: "e", when: {}, items: [{name: "n", icon: "", sql: "SELECT 1", kind: "sum"}]}]`},
		{"bad base mode", `crossrefs: [{title: "t", when: {}, sql: "SELECT 1", none_message: "m", base_when: "sometimes"}]`},
		{"threshold", `complexity_threshold: 0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules("bad.cue", []byte(tt.src))
			require.Error(t, err)
			var re *RulesError
			assert.ErrorAs(t, err, &re)
		})
	}
}

func TestLoadRules_Minimal(t *testing.T) {
	r, err := LoadRules("min.cue", []byte(`
japanese_names: []
families: []
breakdowns: []
intersections: []
suggestions: []
sections: []
component_intersections: []
crossrefs: []
analysis_types: [{name: "custom", when: any: ["x"]}]
`))
	require.NoError(t, err)
	assert.Equal(t, 2, r.ComplexityThreshold)
	assert.Equal(t, "custom", r.AnalysisTypeOf("X marks"))
	assert.Equal(t, "general_query", r.AnalysisTypeOf("nothing"))
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.cue")
	require.NoError(t, os.WriteFile(path, defaultRulesCUE, 0o644))

	r, err := LoadRulesFile(path)
	require.NoError(t, err)
	assert.Len(t, r.Sections, 5)

	_, err = LoadRulesFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestWhen_Matches(t *testing.T) {
	assert.True(t, When{}.Matches("anything"))
	assert.True(t, When{All: []string{"aws", "admin"}}.Matches("aws administrators"))
	assert.False(t, When{All: []string{"aws", "admin"}}.Matches("aws users"))
	assert.True(t, When{Any: []string{"apple", "macbook"}}.Matches("macbook owners"))
	assert.False(t, When{All: []string{"aws"}, Any: []string{"apple"}}.Matches("aws lenovo"))
	assert.True(t, When{Any: []string{"admin"}, None: []string{"aws"}}.Matches("github admins"))
	assert.False(t, When{Any: []string{"admin"}, None: []string{"aws"}}.Matches("aws admins"))
	assert.False(t, When{None: []string{"lenovo"}}.Matches("lenovo"))
}

func TestRules_Complex(t *testing.T) {
	r, err := DefaultRules()
	require.NoError(t, err)

	assert.True(t, r.Complex("Lenovo users with AWS access"))
	assert.True(t, r.Complex("Notion licenses in Japan"))
	assert.False(t, r.Complex("all Lenovo laptops"))
}

func TestRenderer(t *testing.T) {
	s := openFixture(t)
	r := renderer{roles: s.Roles(), japanese: []string{"Tomoyo", "o'neil"}}

	got, err := r.render("t", `SELECT {{col "app_portfolio.roles"}} FROM {{table "app_portfolio"}}`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Role_s" FROM "app_portfolio"`, got)

	got, err = r.render("t", `{{acol "d" "devices.assigned_email"}}`)
	require.NoError(t, err)
	assert.Equal(t, `d."Assigned_User_s_Email"`, got)

	got, err = r.render("t", `{{anyActivated "p" "notion"}}`)
	require.NoError(t, err)
	assert.Equal(t, `(p."Notion_-_Josys_inc" = 'Activated' OR p."Notion_-_Josys_public" = 'Activated')`, got)

	got, err = r.render("t", `{{activatedCase "" "notion"}}`)
	require.NoError(t, err)
	assert.Equal(t, `CASE WHEN "Notion_-_Josys_inc" = 'Activated' THEN 'Josys Inc' WHEN "Notion_-_Josys_public" = 'Activated' THEN 'Josys Public' ELSE 'Unknown' END`, got)

	got, err = r.render("t", `{{japaneseNames}}`)
	require.NoError(t, err)
	assert.Equal(t, `'tomoyo', 'o''neil'`, got)

	for _, src := range []string{
		`{{col "devices"}}`,
		`{{col "devices.nope"}}`,
		`{{anyActivated "p" "zoom"}}`,
		`{{col`,
	} {
		_, err := r.render("t", src)
		assert.Error(t, err, src)
	}
}

func TestFill(t *testing.T) {
	assert.Equal(t, "None of the 3 users", fill("None of the {{.Base}} users", struct{ Base int }{3}))
	assert.Equal(t, "plain", fill("plain", nil))
	assert.Equal(t, "broken {{", fill("broken {{", nil))
}
