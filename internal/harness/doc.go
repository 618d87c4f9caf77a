// Package harness runs question scenarios against the full pipeline.
//
// A scenario loads a set of CSV exports into a scratch database, scripts
// the oracle, asks a sequence of questions and checks the answers.
//
// # Scenario Format
//
//	name: lenovo_fallback
//	description: "What this scenario validates"
//	exports:
//	  devices: ../exports/devices.csv
//	  provisions: ../exports/provisions.csv
//	  portfolio: ../exports/app_portfolio.csv
//	oracle:
//	  - question: "Which Lenovo laptops are in use?"
//	    sql: "SELECT * FROM devices WHERE Manufacturer = 'LENOVO'"
//	  - question: "provider down"
//	    error: "openai API error"
//	flow:
//	  - ask: "Which Lenovo laptops are in use?"
//	    type: combined
//	    expect:
//	      method: combined_nl2sql_primary
//	      count: 2
//	assertions:
//	  - type: oracle_calls
//	    question: "Which Lenovo laptops are in use?"
//	    count: 1
//	  - type: row_count
//	    table: devices
//	    where: { Manufacturer: LENOVO }
//	    count: 2
//
// Export paths are relative to the scenario file.
//
// # Assertion Types
//
//   - trace_contains: some answer has the given method (and question, if set)
//   - trace_order: methods appear in the given order
//   - trace_count: a method appears exactly N times
//   - oracle_calls: the oracle was asked a question exactly N times
//   - cache_size: the result cache holds exactly N entries
//   - row_count: a table has exactly N rows matching where
//
// # Deterministic Testing
//
// Every run uses a stepping clock and sequential request ids ("req-1",
// "req-2", ...) so traces are stable and can be compared against golden
// files with RunWithGolden.
package harness
