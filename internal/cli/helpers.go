package cli

import (
	"github.com/veto-sh/veto/internal/audit"
	"github.com/veto-sh/veto/internal/config"
)

// auditLog opens the trail at its standard path, for commands that must
// record a BLOCKED entry even when the gate itself failed to assemble.
func auditLog() *audit.Log {
	return audit.NewLog(config.AuditLogPath())
}
