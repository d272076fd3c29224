package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dedup-service/internal/app"
	"dedup-service/internal/dedup/ingest"
	"dedup-service/internal/dedup/model"
	"dedup-service/internal/dedup/service"
	"dedup-service/internal/fileio"
)

var (
	classifyOut          string
	classifyHeaderRow    int
	classifyAlternatives bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <file>",
	Short: "Classify a spreadsheet of institutions against the registry",
	Long: `Classify every row of a .xlsx, .xls or .csv file as duplicate,
potential duplicate or no match.

Examples:
  # Print the batch result as JSON
  dedup-cli classify partners.xlsx --references refs.json

  # Write an Excel report
  dedup-cli classify partners.csv --references refs.json --out report.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyOut, "out", "o", "", "write results to this .xlsx or .json file instead of stdout")
	classifyCmd.Flags().IntVar(&classifyHeaderRow, "header-row", 1, "1-based header row")
	classifyCmd.Flags().BoolVar(&classifyAlternatives, "alternatives", false, "include ranked registry alternatives per record")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	table, err := fileio.Read(f, args[0], classifyHeaderRow)
	if err != nil {
		return err
	}
	parsed, err := ingest.FromTable(table, ingest.DefaultColumns())
	if err != nil {
		return err
	}

	det, err := service.NewDetector(cfg.Matching)
	if err != nil {
		return err
	}
	refs, _, closeRefs, err := app.References(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRefs()
	emb, err := app.Embedder(ctx, cfg, nil)
	if err != nil {
		return err
	}
	var embedder service.Embedder
	if emb != nil {
		embedder = emb
	}

	runner := service.NewRunner(det, refs, embedder, nil, nil, log, app.RunnerOptions(cfg))
	res, err := runner.Run(ctx, service.Batch{
		Filename:     args[0],
		Rows:         parsed.Rows,
		Errors:       parsed.Errors,
		Alternatives: classifyAlternatives,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d records: %d duplicates, %d potential duplicates, %d no match, %d errors\n",
		res.TotalRecords, res.Progress.Duplicates, res.Progress.PotentialDuplicates, res.Progress.NoMatch, len(res.Progress.Errors))

	if classifyOut == "" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	out, err := os.Create(classifyOut)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(classifyOut), ".json") {
		err = writeJSON(out, res)
	} else {
		err = writeReport(out, res)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var reportHeaders = []string{"id", "institution_name", "acronym", "status", "similarity", "matched_reference_id", "reason", "web_page", "type", "country"}

// writeReport writes classified records followed by row errors to one sheet.
func writeReport(w io.Writer, res model.BatchResult) error {
	rows := make([][]any, 0, len(res.Results)+len(res.Progress.Errors))
	for _, r := range res.Results {
		rows = append(rows, []any{r.ID, r.InstitutionName, r.Acronym, string(r.Status), r.Similarity, r.MatchedReferenceID, r.Reason, r.WebPage, r.Type, r.Country})
	}
	for _, e := range res.Progress.Errors {
		rows = append(rows, []any{e.ID, "", "", "error", "", "", e.String(), "", "", ""})
	}
	return fileio.WriteXLSX(w, "Results", reportHeaders, rows)
}
