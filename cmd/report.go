package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/logging"
	"github.com/datachat/datachat/internal/report"
	"github.com/datachat/datachat/internal/schema"
)

var (
	reportRequest string
	reportData    string
	reportTable   string
	reportQuery   string
	reportTitle   string
	reportAuthor  string
	reportOutput  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and view narrative data reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a report with the configured LLM",
	Long: `Generate an executive report from a request file (--request, the JSON
body of POST /api/report) or from the sample of an uploaded file (--data).

The report is printed as text, or written to --output: a .json path gets the
structured report, any other path the text rendering.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildReportRequest(cmd)
		if err != nil {
			return err
		}

		cfg, err := config.LoadOrDefault(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := logging.New(os.Stderr, effectiveLevel(cfg))

		gen, err := report.NewGenerator(cfg.LLM, logger)
		if errors.Is(err, report.ErrNotConfigured) {
			return fmt.Errorf("%w: set llm.provider and llm.api_key in the config file", err)
		}
		if err != nil {
			return err
		}

		rep, err := report.NewReporter(gen, logger, report.WithGraphDir(cfg.LLM.GraphDir)).Generate(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeReport(cmd, rep)
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report.json>",
	Short: "Print a saved JSON report as text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := report.ReadJSON(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatText(rep))
		return nil
	},
}

func buildReportRequest(cmd *cobra.Command) (report.Request, error) {
	var req report.Request
	switch {
	case reportRequest != "" && reportData != "":
		return req, errors.New("use either --request or --data, not both")

	case reportRequest != "":
		data, err := os.ReadFile(reportRequest)
		if err != nil {
			return req, fmt.Errorf("reading request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("parsing request: %w", err)
		}

	case reportData != "":
		res, err := inferFile(cmd.Context(), reportData)
		if err != nil {
			return req, err
		}
		columns, rows, err := sampleTable(res, reportTable)
		if err != nil {
			return req, err
		}
		req.Columns = columns
		req.Rows = rows

	default:
		return req, errors.New("--request or --data is required")
	}

	if reportQuery != "" {
		req.Query = reportQuery
	}
	if reportTitle != "" {
		req.Title = reportTitle
	}
	if reportAuthor != "" {
		req.Author = reportAuthor
	}
	return req, nil
}

// sampleTable returns the columns and sampled rows of the named table, or of
// the first table when name is empty.
func sampleTable(res *schema.Result, name string) ([]string, [][]any, error) {
	tables := res.AllTables()
	var table *schema.Table
	for i := range tables {
		if name == "" || tables[i].Name == name {
			table = &tables[i]
			break
		}
	}
	if table == nil {
		return nil, nil, fmt.Errorf("table %q not found (have %s)", name, strings.Join(res.TableNames(), ", "))
	}

	columns := table.ColumnNames()
	sample := res.SampleFor(table.Name)
	rows := make([][]any, len(sample))
	for i, rec := range sample {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return columns, rows, nil
}

func writeReport(cmd *cobra.Command, rep *report.Report) error {
	switch {
	case reportOutput == "":
		fmt.Fprint(cmd.OutOrStdout(), report.FormatText(rep))
		return nil
	case strings.HasSuffix(strings.ToLower(reportOutput), ".json"):
		if err := report.WriteJSON(rep, reportOutput); err != nil {
			return err
		}
	default:
		if err := report.WriteText(rep, reportOutput); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportOutput)
	return nil
}

func init() {
	reportGenerateCmd.Flags().StringVar(&reportRequest, "request", "", "JSON report request file")
	reportGenerateCmd.Flags().StringVar(&reportData, "data", "", "CSV, JSON, SQLite or SQL dump file to report on")
	reportGenerateCmd.Flags().StringVar(&reportTable, "table", "", "table of --data to use (default: first table)")
	reportGenerateCmd.Flags().StringVar(&reportQuery, "query", "", "question the report should answer")
	reportGenerateCmd.Flags().StringVar(&reportTitle, "title", "", "report title")
	reportGenerateCmd.Flags().StringVar(&reportAuthor, "author", "", "report author")
	reportGenerateCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to this file (.json for structured output)")
	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportShowCmd)
	rootCmd.AddCommand(reportCmd)
}
