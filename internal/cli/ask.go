package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/assetq/internal/engine"
	"github.com/roach88/assetq/internal/errs"
	"github.com/roach88/assetq/internal/oracle"
)

// maxTextRows is how many result rows text output shows without --verbose.
const maxTextRows = 20

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	Type string

	// Oracle replaces the configured provider (for testing).
	Oracle oracle.Oracle
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Long: `Answer a single question from the command line.

Search types:
  combined  oracle SQL first, keyword search if it fails or finds nothing
  nl2sql    oracle SQL only
  keyword   keyword search only (no API key needed)

Example:
  assetq ask "Which Lenovo laptop users have AWS admin access?"
  assetq ask --type keyword bangalore --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", engine.TypeCombined, "search type (combined|nl2sql|keyword)")

	return cmd
}

func runAsk(opts *AskOptions, question string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	var logOut io.Writer = io.Discard
	if opts.Verbose {
		logOut = formatter.GetErrWriter()
	}
	log := newLogger(opts.RootOptions, logOut)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	requireKey := !strings.EqualFold(opts.Type, engine.TypeKeyword)
	a, err := openApp(cfg, log, requireKey, opts.Oracle)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "startup check failed", err)
	}
	defer a.Close()

	res, err := a.svc.Search(cmd.Context(), engine.Request{Question: question, Type: opts.Type})
	if err != nil {
		if errs.IsValidation(err) {
			return formatter.Fail(ExitCommandError, ErrCodeValidation, errs.Message(err), nil)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "search failed", err)
	}

	if err := formatter.Success(res, func(w io.Writer) { writeResultText(w, res, opts.Verbose) }); err != nil {
		return err
	}
	if res.Status == engine.StatusAPIError || res.Status == engine.StatusSQLError {
		return NewExitError(ExitFailure, res.Error)
	}
	return nil
}

// writeResultText renders a QueryResult for a terminal.
func writeResultText(w io.Writer, res *engine.QueryResult, verbose bool) {
	cached := ""
	if res.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(w, "Method: %s%s\n", res.Method, cached)
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	if res.SQL != "" {
		fmt.Fprintf(w, "SQL: %s\n", res.SQL)
	}
	if res.FallbackReason != "" {
		fmt.Fprintf(w, "Fallback: %s\n", res.FallbackReason)
		fmt.Fprintf(w, "Attempted SQL: %s\n", res.AttemptedSQL)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", res.Error)
	}
	fmt.Fprintf(w, "Results: %d in %.3fs\n", res.Count, res.ExecutionTime)

	rows := reflect.ValueOf(res.Results)
	if rows.Kind() == reflect.Slice {
		n := rows.Len()
		if !verbose && n > maxTextRows {
			n = maxTextRows
		}
		for i := 0; i < n; i++ {
			line, err := json.Marshal(rows.Index(i).Interface())
			if err != nil {
				line = []byte(fmt.Sprint(rows.Index(i).Interface()))
			}
			fmt.Fprintf(w, "  %d. %s\n", i+1, line)
		}
		if n < rows.Len() {
			fmt.Fprintf(w, "  ... %d more (use --verbose or --format json)\n", rows.Len()-n)
		}
	}

	if res.Analysis == nil {
		return
	}
	if len(res.Insights) > 0 {
		fmt.Fprintln(w, "Insights:")
		for _, s := range res.Insights {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintln(w, "Suggestions:")
		for _, s := range res.Suggestions {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	if verbose && res.DetailedBreakdown != nil {
		fmt.Fprintf(w, "%s\n", res.DetailedBreakdown.Title)
		for _, c := range res.DetailedBreakdown.Components {
			fmt.Fprintf(w, "  %s %s: %d\n", c.Icon, c.Name, c.Count)
		}
		for _, x := range res.DetailedBreakdown.Intersections {
			fmt.Fprintf(w, "  ∩ %s: %d\n", x.Name, x.Count)
		}
	}
	if res.ComprehensiveSummary != "" {
		fmt.Fprintf(w, "Summary: %s\n", res.ComprehensiveSummary)
	}
}
