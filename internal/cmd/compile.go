package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/dotk-io/acbp/internal/emit"
	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/pipeline"
	"github.com/dotk-io/acbp/internal/progress"
	"github.com/dotk-io/acbp/internal/report"
)

func compileCommand() *cobra.Command {
	var (
		output      string
		doEnumerate bool
		check       bool
		workers     int
		resultsDir  string
		showBar     bool
	)

	cmd := &cobra.Command{
		Use:   "compile <model>...",
		Short: "Compile model documents and print their reports",
		Long: `Compile loads each model document, reduces its flag equivalences,
compiles its constraints, optionally enumerates the valid masks, estimates the
decision-space size and renders the SQL artifact. Arguments may be file paths
or glob patterns.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandArgs(args)
			if err != nil {
				return err
			}
			if (output != "" || check) && len(paths) != 1 {
				return fmt.Errorf("--output and --check require exactly one model, got %d", len(paths))
			}

			log := newLogger()
			for _, path := range paths {
				m, err := model.Load(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				var bar *progress.Bar
				if showBar && doEnumerate && m.B() <= m.LimitBits() {
					bar = progress.New(os.Stderr, int64(1)<<m.B(), "enumerating "+m.Name)
				}

				res, err := pipeline.Run(cmd.Context(), m, pipeline.Options{
					Enumerate:  doEnumerate,
					Workers:    workers,
					Bar:        bar,
					ResultsDir: resultsDir,
					Log:        log,
				})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				if err := report.Write(cmd.OutOrStdout(), res, resultsDir); err != nil {
					return err
				}

				switch {
				case check:
					if err := checkArtifact(output, res.SQL, cmd); err != nil {
						return err
					}
				case output != "":
					if err := emit.WriteFile(output, res.SQL); err != nil {
						return err
					}
					log.Infof("wrote artifact to %s", output)
				case len(paths) == 1:
					fmt.Fprintln(cmd.OutOrStdout(), "\n"+res.SQL)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "out-sql", "o", "", "write the generated SQL artifact to this file")
	cmd.Flags().BoolVar(&doEnumerate, "enumerate", false, "enumerate valid masks if feasible (bit-only)")
	cmd.Flags().BoolVar(&check, "check", false, "with -o, fail if the artifact on disk differs from the regenerated one")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel enumeration workers (0 = all CPUs)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", filepath.Join("papers", "results"), "results directory for estimate-vs-actual comparison")
	cmd.Flags().BoolVar(&showBar, "progress", false, "show an enumeration progress bar")
	return cmd
}

func checkArtifact(path, regenerated string, cmd *cobra.Command) error {
	if path == "" {
		return fmt.Errorf("--check requires -o to name the artifact to compare against")
	}

	have, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if string(have) == regenerated {
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), textdiff.Unified(path, path+" (regenerated)", string(have), regenerated))
	return fmt.Errorf("artifact %s is out of date", path)
}

// expandArgs resolves each argument as a literal path or, when it contains
// glob metacharacters, as a pattern over its directory.
func expandArgs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(filepath.Base(arg), "*?[{") {
			paths = append(paths, arg)
			continue
		}

		dir := filepath.Dir(arg)
		g, err := glob.Compile(filepath.Base(arg))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, e := range entries {
			if !e.IsDir() && g.Match(e.Name()) {
				paths = append(paths, filepath.Join(dir, e.Name()))
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("pattern %q matched no files", arg)
		}
	}
	return paths, nil
}
