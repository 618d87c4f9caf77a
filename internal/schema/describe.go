package schema

import (
	"fmt"
	"strings"
)

// Column is one column as reported by PRAGMA table_info.
type Column struct {
	Name string
	Type string
}

// Table is a table name with its columns in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

// userColumnCount is how many leading provisions columns are user identity
// columns; everything after them is one column per application.
const userColumnCount = 8

// highlightedApps are the applications whose provisions columns are listed
// individually in the description.
var highlightedApps = []string{"Datadog", "GitHub", "Slack", "AWS", "Google", "Microsoft"}

var tableDescriptions = map[string]string{
	Devices:    "IT assets (laptops, computers, phones) with assignment information",
	Provisions: "User access to applications and services",
	Portfolio:  "Detailed application access with roles, costs, and account information",
}

var columnDescriptions = map[string]map[string]string{
	Devices: {
		"Asset_Number":          "Unique device identifier",
		"Device_Type":           "Type of device (Laptop, Computer, etc.)",
		"Manufacturer":          "Device manufacturer (Apple, Dell, etc.)",
		"Model_Name":            "Specific model name",
		"Device_Status":         "Current status (Available, In-use, etc.)",
		"Assigned_User_s_Email": "Email of user assigned to device",
		"Assigned_User_s_ID":    "User ID of assigned user",
		"City":                  "Location city",
		"Region":                "Geographic region",
	},
	Provisions: {
		"User_ID":            "Unique user identifier",
		"First_Name":         "User first name",
		"Last_Name":          "User last name",
		"Email":              "User email address",
		"Role":               "Job role/title",
		"Status":             "User status (Active, Inactive)",
		"Work_Location_Code": "Office location code",
	},
	Portfolio: {
		"App":                    "Application name (e.g., AWS, GitHub, Slack)",
		"Identifier":             "Application instance/account identifier",
		"ID":                     "Username/login ID for the application",
		"Account_Status":         "Account status (Activated, Invited, etc.)",
		"Monthly_Expense":        "Monthly cost for this access",
		"Role_s":                 "User roles/permissions in the application",
		"Additional_Information": "Extra details about the access",
		"First_Name":             "User first name",
		"Last_Name":              "User last name",
		"User_Status":            "User account status",
		"Email":                  "User email address",
		"User_ID":                "Unique user identifier",
		"User_Category":          "User type (Full-time, Contractor, etc.)",
		"Department_s":           "User department",
		"Job_Title":              "User job title",
		"Role":                   "User organizational role",
	},
}

// ColumnDescription returns the human description of a column, or
// "Data field" when none is known.
func ColumnDescription(table, column string) string {
	if d, ok := columnDescriptions[table][column]; ok {
		return d
	}
	return "Data field"
}

// Describe renders the schema description for the oracle prompt.
//
// Output is deterministic for a given input: tables are emitted in the
// fixed order devices, provisions, app_portfolio; other tables (and views)
// are not described. Missing tables are skipped.
func Describe(tables []Table) string {
	byName := make(map[string]Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	var sections []string
	if t, ok := byName[Devices]; ok {
		sections = append(sections, describeFlat(t))
	}
	if t, ok := byName[Provisions]; ok {
		sections = append(sections, describeProvisions(t))
	}
	if t, ok := byName[Portfolio]; ok {
		sections = append(sections, describePortfolio(t))
	}
	return strings.Join(sections, "\n\n")
}

func header(b *strings.Builder, t Table) {
	fmt.Fprintf(b, "Table: %s\n", t.Name)
	fmt.Fprintf(b, "Description: %s\n", tableDescriptions[t.Name])
}

func columnLine(b *strings.Builder, table string, c Column) {
	fmt.Fprintf(b, "  - %s (%s) - %s\n", c.Name, c.Type, ColumnDescription(table, c.Name))
}

func describeFlat(t Table) string {
	var b strings.Builder
	header(&b, t)
	b.WriteString("Columns:\n")
	for _, c := range t.Columns {
		columnLine(&b, t.Name, c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeProvisions(t Table) string {
	var b strings.Builder
	header(&b, t)

	b.WriteString("Key User Columns:\n")
	n := min(userColumnCount, len(t.Columns))
	for _, c := range t.Columns[:n] {
		columnLine(&b, t.Name, c)
	}

	b.WriteString("\nApplication Access Columns (use backticks for complex names):\n")
	for _, c := range t.Columns[n:] {
		if isHighlightedApp(c.Name) {
			fmt.Fprintf(&b, "  - `%s` (%s) - Application access\n", c.Name, c.Type)
		}
	}

	fmt.Fprintf(&b, "\nIMPORTANT: Total %d columns in provisions table\n", len(t.Columns))
	b.WriteString("For complex column names with special characters, use backticks: `column_name`\n")
	b.WriteString("Application values: 'Activated', 'Invited', '' (empty for no access)")
	return b.String()
}

func describePortfolio(t Table) string {
	var b strings.Builder
	header(&b, t)
	b.WriteString("Columns:\n")
	for _, c := range t.Columns {
		columnLine(&b, t.Name, c)
	}
	fmt.Fprintf(&b, "\nIMPORTANT: Total %d columns in app_portfolio table\n", len(t.Columns))
	b.WriteString("Account Status values: 'Activated', 'Invited', etc.\n")
	b.WriteString("Use this table for detailed role-based queries and cost analysis")
	return b.String()
}

func isHighlightedApp(name string) bool {
	for _, app := range highlightedApps {
		if strings.Contains(name, app) {
			return true
		}
	}
	return false
}

// ColumnsByTable flattens tables into the shape Resolve expects.
func ColumnsByTable(tables []Table) map[string][]string {
	out := make(map[string][]string, len(tables))
	for _, t := range tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		out[t.Name] = cols
	}
	return out
}
