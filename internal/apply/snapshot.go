package apply

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dotk-io/acbp/internal/history"
)

// Snapshot records the applied model's row counts under the results
// directory, producing the record that later compiles compare their estimate
// against. dataTable may be empty; the optional counts are left blank when
// their relation does not exist.
func Snapshot(ctx context.Context, db *sql.DB, modelName, dataTable, resultsDir string, now time.Time) (string, error) {
	validMasks, err := count(ctx, db, quoteIdent(modelName+"_valid_masks"))
	if err != nil {
		return "", err
	}
	decisionRows, err := count(ctx, db, quoteIdent(modelName+"_decision_space"))
	if err != nil {
		return "", err
	}

	presentRows, err := optionalCount(ctx, db, modelName+"_present_mat")
	if err != nil {
		return "", err
	}

	var dataRows *int64
	if dataTable != "" {
		dataRows, err = optionalCount(ctx, db, dataTable)
		if err != nil {
			return "", err
		}
	}

	dir := filepath.Join(resultsDir, now.UTC().Format(history.TimestampFormat), modelName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"valid_masks", "decision_rows", "data_rows", "present_rows"}); err != nil {
		return "", err
	}
	if err := w.Write([]string{
		strconv.FormatInt(validMasks, 10),
		strconv.FormatInt(decisionRows, 10),
		formatOptional(dataRows),
		formatOptional(presentRows),
	}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, history.SummaryFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func count(ctx context.Context, db *sql.DB, quotedRelation string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quotedRelation).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", quotedRelation, err)
	}
	return n, nil
}

func optionalCount(ctx context.Context, db *sql.DB, relation string) (*int64, error) {
	exists, err := RelationExists(ctx, db, relation)
	if err != nil || !exists {
		return nil, err
	}
	n, err := count(ctx, db, quoteIdent(relation))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

func formatOptional(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
