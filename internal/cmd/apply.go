package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotk-io/acbp/internal/apply"
	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/pipeline"
)

func applyCommand() *cobra.Command {
	var (
		dsn           string
		logStatements bool
		snapshot      bool
		dataTable     string
		resultsDir    string
	)

	cmd := &cobra.Command{
		Use:   "apply <model-or-artifact>",
		Short: "Apply a compiled artifact to PostgreSQL",
		Long: `Apply executes the generated SQL batch against a PostgreSQL database.
The argument is either a model document (compiled in-process) or an already
emitted .sql artifact. With --snapshot the resulting row counts are recorded
under the results directory for later estimate-vs-actual comparison.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			script, modelName, err := loadArtifact(cmd, args[0])
			if err != nil {
				return err
			}

			db, err := apply.Open(apply.Config{DSN: dsn, LogStatements: logStatements}, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("connect: %w", err)
			}

			n, err := apply.Run(cmd.Context(), db, script)
			if err != nil {
				return err
			}
			log.Infof("applied %d statements", n)

			if snapshot {
				if modelName == "" {
					return fmt.Errorf("--snapshot requires a model document argument, not a raw artifact")
				}
				if dataTable == "" {
					dataTable = modelName + "_data"
				}
				path, err := apply.Snapshot(cmd.Context(), db, modelName, dataTable, resultsDir, time.Now())
				if err != nil {
					return err
				}
				log.Infof("recorded summary at %s", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (required)")
	cmd.Flags().BoolVar(&logStatements, "log-statements", false, "log every executed statement")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "record row counts under the results directory")
	cmd.Flags().StringVar(&dataTable, "data-table", "", "data table for the snapshot (default <model>_data)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", filepath.Join("papers", "results"), "results directory for snapshots")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

// loadArtifact returns the SQL batch to execute and, when the argument was a
// model document, the model name for snapshotting.
func loadArtifact(cmd *cobra.Command, arg string) (string, string, error) {
	if strings.EqualFold(filepath.Ext(arg), ".sql") {
		bs, err := os.ReadFile(arg)
		if err != nil {
			return "", "", err
		}
		return string(bs), "", nil
	}

	m, err := model.Load(arg)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", arg, err)
	}
	res, err := pipeline.Run(cmd.Context(), m, pipeline.Options{Log: newLogger()})
	if err != nil {
		return "", "", err
	}
	return res.SQL, m.Name, nil
}
