package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dshills/prsignal/internal/risk"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect risk rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the effective risk rules in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		opts, err := analysisOptions(cfg)
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}

		tbl := table.NewWriter()
		tbl.SetOutputMirror(cmd.OutOrStdout())
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"#", "Pattern", "Category", "Severity", "Message"})
		for i, r := range risk.Rules(opts.CustomRules) {
			tbl.AppendRow(table.Row{i + 1, r.Pattern, r.Category, r.Severity, r.Message})
		}
		tbl.AppendFooter(table.Row{"", fmt.Sprintf("%d rules", tbl.Length())})
		tbl.Render()
		return nil
	},
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a rules file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := risk.LoadRulesFile(args[0])
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}
		if rf == nil {
			rf = &risk.RulesFile{}
		}
		bad := risk.Invalid(rf.Rules)
		for _, e := range bad {
			fmt.Fprintf(cmd.ErrOrStderr(), "  - %v\n", e)
		}
		if len(bad) > 0 {
			fail(cmd, ExitUsageError, fmt.Errorf("%s: %d malformed pattern(s)", args[0], len(bad)))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules, %d ignore patterns OK\n", args[0], len(rf.Rules), len(rf.Ignore))
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesListCmd.Flags().StringVar(&flagRules, "rules", "", "Custom rules file (YAML or JSON)")
}
