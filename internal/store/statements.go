package store

import (
	"context"
	"database/sql"
	"fmt"
)

// stmtDef pairs a prepared statement's destination field with the SQL it
// prepares from, so prepareAll can batch a domain's statements with a
// single loop instead of repeating the same error-handling per field.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

func prepareAll(ctx context.Context, conn *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := conn.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}
