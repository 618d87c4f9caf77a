package testutil

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/roach88/assetq/internal/ingest"
	"github.com/roach88/assetq/internal/schema"
)

// DevicesCSV is the device inventory fixture. Headers are in export form so
// that loading it exercises header sanitisation.
//
// Facts the query-path tests rely on:
//   - 4 in-use devices, all with an assigned email
//   - in-use Lenovo users: arvind, kohei (2)
//   - in-use Apple users: tomoyo, priya (2)
//   - Japan (region/city): tomoyo, kohei; India: arvind, priya
const DevicesCSV = `Asset Number,Device Type,Manufacturer,Model Name,Device Status,Assigned User's Email,Assigned User's ID,City,Region,Additional Information
A-001,LAPTOP,LENOVO,ThinkPad X1,In-use,arvind@example.com,U001,Bangalore,INDIA,
A-002,LAPTOP,APPLE,MacBook Pro 14,In-use,tomoyo@example.co.jp,U002,Tokyo,JAPAN,
A-003,LAPTOP,APPLE,MacBook Air,In-use,priya@example.com,U003,Bangalore,INDIA,
A-004,PHONE,APPLE,iPhone 15,Available,,,Bangalore,INDIA,spare
A-005,LAPTOP,LENOVO,ThinkPad T14,In-use,kohei@example.co.jp,U004,Tokyo,JAPAN,
`

// ProvisionsCSV is the user provisioning fixture. The first eight columns
// are user identity; the rest are one column per application.
//
// Notion licenses (either column Activated): tomoyo, priya (2).
const ProvisionsCSV = `User ID,First Name,Last Name,Email,Role,Status,Work Location Code,Department,Notion - Josys inc,Notion - Josys public,GitHub,AWS Production,Slack
U001,Arvind,Kumar,arvind@example.com,Engineer,Active,BLR,Engineering,,,Activated,Activated,Activated
U002,Tomoyo,Sato,tomoyo@example.co.jp,Manager,Active,TYO,Sales,Activated,,,,Activated
U003,Priya,Shah,priya@example.com,Engineer,Active,BLR,Engineering,,Activated,Activated,Activated,Activated
U004,Kohei,Tanaka,kohei@example.co.jp,Designer,Inactive,TYO,Design,,,,,Invited
`

// PortfolioCSV is the per-application access fixture.
//
// Activated AWS administrators: priya, tomoyo (2). Neither Lenovo user is
// one. Activated GitHub users: arvind (1).
const PortfolioCSV = `App,Identifier,ID,Account Status,Monthly Expense,Role(s),Additional Information,First Name,Last Name,User Status,Email,User ID,User Category,Department(s),Job Title,Role
AWS,aws-prod,priya,Activated,0,AdministratorAccess,,Priya,Shah,Active,priya@example.com,U003,Full-time,Engineering,SRE,Member
AWS,aws-prod,arvind,Activated,0,ReadOnlyAccess,,Arvind,Kumar,Active,arvind@example.com,U001,Full-time,Engineering,Developer,Member
AWS,aws-prod,tomoyo,Activated,0,AdministratorAccess,,Tomoyo,Sato,Active,tomoyo@example.co.jp,U002,Full-time,Sales,Sales Manager,Manager
GitHub,acme,arvind-gh,Activated,21,Member,,Arvind,Kumar,Active,arvind@example.com,U001,Full-time,Engineering,Developer,Member
GitHub,acme,kohei-gh,Invited,21,Member,,Kohei,Tanaka,Active,kohei@example.co.jp,U004,Contractor,Design,Designer,Member
`

// FixtureDB loads all three fixtures into a fresh database under t.TempDir
// and returns its path.
func FixtureDB(t testing.TB) string {
	t.Helper()
	return BuildDB(t, map[string]string{
		schema.Devices:    DevicesCSV,
		schema.Provisions: ProvisionsCSV,
		schema.Portfolio:  PortfolioCSV,
	})
}

// BuildDB loads the given table→CSV contents into a fresh database under
// t.TempDir and returns its path. Tables are written in the order devices,
// provisions, app_portfolio, then any others in map order.
func BuildDB(t testing.TB, tables map[string]string) string {
	t.Helper()

	order := []string{schema.Devices, schema.Provisions, schema.Portfolio}
	for name := range tables {
		if name != schema.Devices && name != schema.Provisions && name != schema.Portfolio {
			order = append(order, name)
		}
	}

	var frames []*ingest.Frame
	for _, name := range order {
		data, ok := tables[name]
		if !ok {
			continue
		}
		f, err := ingest.ReadCSV(name, strings.NewReader(data))
		if err != nil {
			t.Fatalf("fixture %s: %v", name, err)
		}
		frames = append(frames, f)
	}

	path := filepath.Join(t.TempDir(), "test.db")
	if _, err := ingest.Write(path, frames, nil); err != nil {
		t.Fatalf("write fixture db: %v", err)
	}
	return path
}
