package cmd

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dotk-io/acbp/internal/model"
	"github.com/dotk-io/acbp/internal/rules"
)

func explainCommand() *cobra.Command {
	var (
		mask        uint64
		assignments []string
		failingOnly bool
	)

	cmd := &cobra.Command{
		Use:   "explain <model>",
		Short: "Explain a mask against a model's rules, without a database",
		Long: `Explain evaluates every rule of the model against the given mask and
optional category assignment, mirroring the generated SQL explainer.
FORBID_IF_SQL rules carry opaque predicate text and are reported as not
locally checkable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := model.Load(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if mask > m.MaxMask() {
				return fmt.Errorf("mask %d out of range [0, %d]", mask, m.MaxMask())
			}

			assign, err := parseAssignments(m, assignments)
			if err != nil {
				return err
			}

			compiled := rules.Compile(m)
			findings := compiled.Findings(mask, assign)

			failed := 0
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Rule", "OK")
			for _, f := range findings {
				status := "-"
				switch {
				case !f.Checkable:
					status = "n/a (opaque SQL)"
				case f.OK:
					status = "true"
				default:
					status = "false"
					failed++
				}
				if failingOnly && (f.OK || !f.Checkable) {
					continue
				}
				if err := table.Append([]string{f.Rule, status}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}

			if failed == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "mask %d satisfies all checkable rules\n", mask)
				return nil
			}
			return fmt.Errorf("mask %d violates %d rule(s)", mask, failed)
		},
	}

	cmd.Flags().Uint64Var(&mask, "mask", 0, "mask to explain")
	cmd.Flags().StringArrayVar(&assignments, "set", nil, "category assignment as name=value (repeatable)")
	cmd.Flags().BoolVar(&failingOnly, "failing", false, "show failing rules only")
	return cmd
}

func parseAssignments(m *model.Model, pairs []string) (map[string]string, error) {
	assign := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("bad assignment %q, want name=value", p)
		}
		cat, declared := m.Category(name)
		if !declared {
			return nil, fmt.Errorf("undeclared category %q", name)
		}
		found := false
		for _, v := range cat.Values {
			if v == value {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("undeclared value %q for category %q", value, name)
		}
		assign[name] = value
	}
	return assign, nil
}
