// Package history reads the optional per-model results records that
// surrounding tooling drops under a results directory, keyed by UTC timestamp
// and model name. The compiler consults the latest record read-only to show
// estimated vs. actual row counts; a missing record simply disables the
// comparison.
package history

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// TimestampFormat is the layout of result directory names.
const TimestampFormat = "20060102T150405Z"

// SummaryFile is the per-model record file name.
const SummaryFile = "summary.csv"

// timestampGlob matches result directory names like 20250102T030405Z.
var timestampGlob = glob.MustCompile("????????T??????Z")

// Summary is one recorded run. Counts missing from the record are nil.
type Summary struct {
	Timestamp    string
	ValidMasks   *int64
	DecisionRows *int64
	DataRows     *int64
	PresentRows  *int64
}

// Latest returns the most recent summary for a model under dir, or nil when
// no record exists. Absence of the directory or of any matching record is not
// an error.
func Latest(dir, modelName string) (*Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var timestamps []string
	for _, e := range entries {
		if e.IsDir() && timestampGlob.Match(e.Name()) {
			timestamps = append(timestamps, e.Name())
		}
	}
	slices.Sort(timestamps)

	for _, ts := range slices.Backward(timestamps) {
		path := filepath.Join(dir, ts, modelName, SummaryFile)
		summary, err := readSummary(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		summary.Timestamp = ts
		return summary, nil
	}
	return nil, nil
}

func readSummary(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	row, err := r.Read()
	if err != nil {
		return nil, err
	}

	byColumn := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(row) {
			byColumn[strings.TrimSpace(col)] = row[i]
		}
	}

	return &Summary{
		ValidMasks:   parseCount(byColumn["valid_masks"]),
		DecisionRows: parseCount(byColumn["decision_rows"]),
		DataRows:     parseCount(byColumn["data_rows"]),
		PresentRows:  parseCount(byColumn["present_rows"]),
	}, nil
}

// parseCount tolerates comma grouping and float renderings of integers, as
// recorded files in the wild contain both.
func parseCount(s string) *int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		n := int64(f)
		return &n
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
