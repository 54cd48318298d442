// Package migrations embeds and applies the ledger schemas: postgres
// for trades, clickhouse for transport detections.
package migrations

import "embed"

// PostgresFS holds the trade ledger migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS holds the detection ledger migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
