// Package apply is a thin consumer of the compiler's output: it applies an
// emitted artifact batch to PostgreSQL and can snapshot the resulting row
// counts into the results directory that the compiler later consults for its
// estimate-vs-actual comparison. Connection parameters are explicit
// configuration; nothing here reads the environment.
package apply

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"

	"github.com/dotk-io/acbp/internal/logging"
)

type Config struct {
	DSN           string
	LogStatements bool
}

// Open connects to PostgreSQL through database/sql. With statement logging
// enabled every executed statement is logged at debug level.
func Open(cfg Config, log *logging.Logger) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("missing database DSN")
	}

	if cfg.LogStatements && log != nil {
		return sqldblogger.OpenDriver(cfg.DSN, stdlib.GetDefaultDriver(), zerologadapter.New(*log.Zerolog())), nil
	}
	return sql.Open("pgx", cfg.DSN)
}

// Run executes the artifact batch statement by statement and returns how many
// statements were applied. The batch is all CREATE OR REPLACE, so a re-run
// after a mid-batch failure converges rather than duplicating.
func Run(ctx context.Context, db *sql.DB, script string) (int, error) {
	stmts := SplitStatements(script)
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("statement %d/%d: %w", i+1, len(stmts), err)
		}
	}
	return len(stmts), nil
}

// SplitStatements splits an artifact batch on statement-terminating
// semicolons. Semicolons inside single-quoted literals and inside
// dollar-quoted function bodies do not terminate statements.
func SplitStatements(script string) []string {
	var stmts []string
	var cur strings.Builder

	inQuote := false
	inDollar := false

	for i := 0; i < len(script); i++ {
		ch := script[i]

		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == '\'' {
				inQuote = false // a doubled '' re-enters immediately on the next byte
			}
			continue
		case ch == '\'' && !inDollar:
			inQuote = true
			cur.WriteByte(ch)
			continue
		case ch == '$' && i+1 < len(script) && script[i+1] == '$':
			inDollar = !inDollar
			cur.WriteString("$$")
			i++
			continue
		}

		cur.WriteByte(ch)
		if ch == ';' && !inDollar {
			stmt := strings.TrimSpace(cur.String())
			cur.Reset()
			if stmt != ";" && stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
	}

	if tail := strings.TrimSpace(cur.String()); tail != "" {
		stmts = append(stmts, tail)
	}
	return stmts
}

// RelationExists reports whether a table or view with the given name exists.
func RelationExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", name).Scan(&exists)
	return exists, err
}
