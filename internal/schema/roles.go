// Package schema maps the sanitised column names of the ingested tables to
// the logical roles the query pipeline relies on, and renders the textual
// schema description handed to the SQL oracle.
//
// Column names come from whatever headers the source exports carried, so no
// component hard-codes them. Resolve runs once over the live table list and
// every consumer asks the resulting Roles for concrete names thereafter.
package schema

import (
	"sort"
	"strings"
)

// Table names fixed at ingestion.
const (
	Devices    = "devices"
	Provisions = "provisions"
	Portfolio  = "app_portfolio"
)

// Role is a logical column identity, independent of the header spelling.
type Role string

// Device roles.
const (
	AssetNumber    Role = "asset_number"
	DeviceType     Role = "device_type"
	DeviceStatus   Role = "device_status"
	Manufacturer   Role = "manufacturer"
	ModelName      Role = "model_name"
	AssignedEmail  Role = "assigned_email"
	AssignedID     Role = "assigned_id"
	City           Role = "city"
	Region         Role = "region"
	AdditionalInfo Role = "additional_info"
)

// Provision roles.
const (
	UserID       Role = "user_id"
	FirstName    Role = "first_name"
	LastName     Role = "last_name"
	Email        Role = "email"
	UserRole     Role = "role"
	Status       Role = "status"
	WorkLocation Role = "work_location"
)

// Portfolio roles. FirstName, LastName, Email, UserID and UserRole are
// shared with provisions.
const (
	App            Role = "app"
	Identifier     Role = "identifier"
	LoginID        Role = "login_id"
	AccountStatus  Role = "account_status"
	AppRoles       Role = "roles"
	UserStatus     Role = "user_status"
	Department     Role = "department"
	JobTitle       Role = "job_title"
	UserCategory   Role = "user_category"
	MonthlyExpense Role = "monthly_expense"
)

// rule resolves one role: an exact (case-insensitive) match on fallback wins,
// otherwise the first column satisfying match, otherwise fallback itself.
type rule struct {
	role     Role
	fallback string
	match    func(lower string) bool
}

func containsAll(parts ...string) func(string) bool {
	return func(lower string) bool {
		for _, p := range parts {
			if !strings.Contains(lower, p) {
				return false
			}
		}
		return true
	}
}

func equals(name string) func(string) bool {
	return func(lower string) bool { return lower == name }
}

var rules = map[string][]rule{
	Devices: {
		{AssetNumber, "Asset_Number", containsAll("asset", "number")},
		{DeviceType, "Device_Type", containsAll("device", "type")},
		{DeviceStatus, "Device_Status", containsAll("device", "status")},
		{Manufacturer, "Manufacturer", containsAll("manufacturer")},
		{ModelName, "Model_Name", containsAll("model", "name")},
		{AssignedEmail, "Assigned_User_s_Email", containsAll("assigned", "email")},
		{AssignedID, "Assigned_User_s_ID", containsAll("assigned", "id")},
		{City, "City", containsAll("city")},
		{Region, "Region", containsAll("region")},
		{AdditionalInfo, "Additional_Information", containsAll("additional", "information")},
	},
	Provisions: {
		{UserID, "User_ID", containsAll("user", "id")},
		{FirstName, "First_Name", containsAll("first", "name")},
		{LastName, "Last_Name", containsAll("last", "name")},
		{Email, "Email", equals("email")},
		{UserRole, "Role", equals("role")},
		{Status, "Status", equals("status")},
		{WorkLocation, "Work_Location_Code", containsAll("work", "location")},
	},
	Portfolio: {
		{App, "App", equals("app")},
		{Identifier, "Identifier", equals("identifier")},
		{LoginID, "ID", equals("id")},
		{AccountStatus, "Account_Status", containsAll("account", "status")},
		{MonthlyExpense, "Monthly_Expense", containsAll("monthly")},
		{AppRoles, "Role_s", equals("role_s")},
		{FirstName, "First_Name", containsAll("first", "name")},
		{LastName, "Last_Name", containsAll("last", "name")},
		{UserStatus, "User_Status", containsAll("user", "status")},
		{Email, "Email", equals("email")},
		{UserID, "User_ID", containsAll("user", "id")},
		{UserCategory, "User_Category", containsAll("user", "category")},
		{Department, "Department_s", containsAll("department")},
		{JobTitle, "Job_Title", containsAll("job", "title")},
		{UserRole, "Role", equals("role")},
	},
}

// Roles is the result of one schema-resolution pass. The zero value resolves
// every role to its conventional name.
type Roles struct {
	columns  map[string][]string
	resolved map[string]map[Role]string
}

// Resolve maps each known table's roles to concrete column names.
// tables maps table name to its columns in declaration order. Tables that
// are absent still resolve to conventional names so that SQL built from
// them fails at execution with a clear "no such table" error.
func Resolve(tables map[string][]string) Roles {
	r := Roles{
		columns:  make(map[string][]string, len(tables)),
		resolved: make(map[string]map[Role]string, len(rules)),
	}
	for name, cols := range tables {
		r.columns[name] = append([]string(nil), cols...)
	}

	for table, tableRules := range rules {
		cols := tables[table]
		m := make(map[Role]string, len(tableRules))
		for _, rl := range tableRules {
			m[rl.role] = resolveOne(cols, rl)
		}
		r.resolved[table] = m
	}
	return r
}

func resolveOne(cols []string, rl rule) string {
	for _, c := range cols {
		if strings.EqualFold(c, rl.fallback) {
			return c
		}
	}
	for _, c := range cols {
		if rl.match(strings.ToLower(c)) {
			return c
		}
	}
	return rl.fallback
}

// Col returns the concrete column for role in table. Unknown (table, role)
// pairs return "" and false.
func (r Roles) Col(table string, role Role) (string, bool) {
	if m, ok := r.resolved[table]; ok {
		c, ok := m[role]
		return c, ok
	}
	for _, rl := range rules[table] {
		if rl.role == role {
			return rl.fallback, true
		}
	}
	return "", false
}

// MustCol is Col for roles known to exist in the rule set.
func (r Roles) MustCol(table string, role Role) string {
	c, ok := r.Col(table, role)
	if !ok {
		panic("schema: unknown role " + table + "." + string(role))
	}
	return c
}

// Has reports whether table was present when Resolve ran.
func (r Roles) Has(table string) bool {
	_, ok := r.columns[table]
	return ok
}

// Columns returns the columns of table in declaration order.
func (r Roles) Columns(table string) []string {
	return r.columns[table]
}

// Matching returns the columns of table whose lowercased name contains
// substr, in declaration order. Used for per-application columns such as
// the Notion license columns of provisions.
func (r Roles) Matching(table, substr string) []string {
	substr = strings.ToLower(substr)
	var out []string
	for _, c := range r.columns[table] {
		if strings.Contains(strings.ToLower(c), substr) {
			out = append(out, c)
		}
	}
	return out
}

// Tables returns the names of all resolved tables, sorted.
func (r Roles) Tables() []string {
	out := make([]string, 0, len(r.columns))
	for name := range r.columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// QuoteIdent quotes an identifier for SQLite.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
