// Package migrations embeds the ledger schema. Files are applied in name order.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
