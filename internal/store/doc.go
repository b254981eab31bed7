// Package store persists a finished run as a SQLite artifact.
//
// The artifact is written once, after the run completes, and is meant to
// be uploaded or inspected out of band (CI artifact stores, local
// debugging with the sqlite3 shell). The schema is three tables:
//
//	runs       - one row per run (stats, runtime, title)
//	tests      - one row per executed or skipped test
//	assertions - one row per recorded assertion, in emission order
//
// Assertion actual/expected values are serialized to JSON so arbitrary
// payloads survive the trip through SQLite.
package store
