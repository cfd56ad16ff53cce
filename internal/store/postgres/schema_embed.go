package postgres

import _ "embed"

// Schema is the dialer core's own table/index definitions, embedded so
// cmd/seed (-init-schema) can bootstrap a bare database and the integration test can
// provision a testcontainers instance without shelling out to a migration
// tool.
//
//go:embed schema.sql
var Schema string
