// Package migrations embeds the orchestrator's forward-only SQL migrations
// so cmd/cjo can run them without shelling out to an external tool.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
