package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/assetq/internal/insight"
)

// RulesSummary describes a loaded rule table.
type RulesSummary struct {
	Source        string   `json:"source"`
	Valid         bool     `json:"valid"`
	Families      int      `json:"families"`
	Breakdowns    int      `json:"breakdowns"`
	Sections      int      `json:"sections"`
	Components    int      `json:"components"`
	CrossRefs     int      `json:"crossrefs"`
	AnalysisTypes []string `json:"analysis_types"`
	Line          int      `json:"line,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	Dump bool
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules [rules.cue]",
		Short: "Validate an insight rule table",
		Long: `Validate a CUE insight rule table against the rule schema.

With no argument the built-in table is checked. Use --dump with
--format json to print the decoded table.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runRules(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Dump, "dump", false, "include the decoded rule table in JSON output")

	return cmd
}

func runRules(opts *RulesOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	summary := RulesSummary{Source: rulesSource(path)}

	rules, err := loadRules(path)
	if err != nil {
		summary.Error = err.Error()
		var re *insight.RulesError
		if errors.As(err, &re) {
			summary.Error = re.Message
			if re.Pos.IsValid() {
				summary.Line = re.Pos.Line()
			}
		}
		if formatter.Format == "json" {
			_ = formatter.Error(ErrCodeRules, summary.Error, summary)
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			if summary.Line > 0 {
				fmt.Fprintf(formatter.Writer, "line %d\n", summary.Line)
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeRules, summary.Error)
		}
		return WrapExitError(ExitFailure, "rule validation failed", err)
	}

	summary.Valid = true
	summary.Families = len(rules.Families)
	summary.Breakdowns = len(rules.Breakdowns)
	summary.Sections = len(rules.Sections)
	for _, s := range rules.Sections {
		summary.Components += len(s.Items)
	}
	summary.CrossRefs = len(rules.CrossRefs)
	for _, t := range rules.AnalysisTypes {
		summary.AnalysisTypes = append(summary.AnalysisTypes, t.Name)
	}
	formatter.VerboseLog("Loaded rules from %s", summary.Source)

	var data any = summary
	if opts.Dump {
		data = struct {
			RulesSummary
			Rules *insight.Rules `json:"rules"`
		}{summary, rules}
	}
	return formatter.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Rules valid (%s)\n", summary.Source)
		fmt.Fprintf(w, "  %d families, %d breakdowns, %d sections (%d components), %d cross-references\n",
			summary.Families, summary.Breakdowns, summary.Sections, summary.Components, summary.CrossRefs)
		fmt.Fprintf(w, "  analysis types: %v\n", summary.AnalysisTypes)
	})
}
