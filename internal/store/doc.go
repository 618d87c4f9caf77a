// Package store is the read-only query path over the ingested SQLite file.
//
// The store never writes. It exists to run untrusted, oracle-generated SQL
// and the fixed sub-queries of the insight and keyword-search components:
//   - Tables: live table and column listing via PRAGMA table_info
//   - Roles: the schema-resolution result computed once at Open
//   - Execute: guarded SELECT execution returning ordered text records
//   - Count: scalar helper for breakdown sub-queries
//
// # Read-Only Enforcement
//
// Two independent layers keep the database immutable:
//   - The connection is opened with mode=ro and every pooled connection runs
//     PRAGMA query_only = ON from a driver ConnectHook.
//   - Guard rejects anything but a single SELECT, WITH or VALUES statement
//     before it reaches the driver.
//
// # Database Configuration
//
//   - mode=ro: the file must already exist (ingestion creates it)
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - query_only=ON: enforced per connection
package store
