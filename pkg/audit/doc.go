// Package audit records permission-affecting operations: group lifecycle,
// membership changes, zone links, and denied visibility checks.
//
// Sinks implement the Logger interface. Three are provided: NopLogger
// (auditing disabled), LogrusLogger (structured log lines for external
// aggregation), and DBLogger (audit_log table with query and retention
// helpers).
//
// Audit failures must never fail the audited operation; the services log the
// sink error and carry on.
package audit
