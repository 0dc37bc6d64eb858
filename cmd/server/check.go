package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"data-alchemist/backend/internal/validation"
	"data-alchemist/backend/pkg/models"
)

var (
	checkFormat   string
	checkSeverity string
)

var checkCmd = &cobra.Command{
	Use:   "check [file...]",
	Short: "Validate JSON or YAML record files offline",
	Long: `Loads one or more files holding clients, workers and tasks, merges them in
argument order and runs the validation rules. Exits non-zero when any
error defect is found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format: text or json")
	checkCmd.Flags().StringVar(&checkSeverity, "min-severity", "info", "Lowest severity to print: error, warning or info")
}

// errDefectsFound is returned when a check finds error defects.
var errDefectsFound = errors.New("error defects found")

func runCheck(cmd *cobra.Command, args []string) error {
	minRank := models.Severity(checkSeverity).Rank()
	if minRank == 0 {
		return fmt.Errorf("unknown severity %q", checkSeverity)
	}
	if checkFormat != "text" && checkFormat != "json" {
		return fmt.Errorf("unknown format %q", checkFormat)
	}

	records, err := loadRecordFiles(args)
	if err != nil {
		return err
	}

	defects := validation.NewEngine().Validate(records.Clients, records.Workers, records.Tasks)
	summary := models.Summarize(defects)

	shown := make([]models.Defect, 0, len(defects))
	for _, d := range defects {
		if d.Severity.Rank() >= minRank {
			shown = append(shown, d)
		}
	}

	out := cmd.OutOrStdout()
	if checkFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(models.ValidationResult{Defects: shown, Summary: summary}); err != nil {
			return err
		}
	} else if err := printDefects(out, shown, summary); err != nil {
		return err
	}

	if summary.Errors > 0 {
		return fmt.Errorf("%w: %d", errDefectsFound, summary.Errors)
	}
	return nil
}

// loadRecordFiles reads all files concurrently and merges them in the order
// given.
func loadRecordFiles(paths []string) (models.Records, error) {
	loaded := make([]models.Records, len(paths))

	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			r, err := loadRecordFile(path)
			if err != nil {
				return err
			}
			loaded[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Records{}, err
	}

	var merged models.Records
	for _, r := range loaded {
		merged.Clients = append(merged.Clients, r.Clients...)
		merged.Workers = append(merged.Workers, r.Workers...)
		merged.Tasks = append(merged.Tasks, r.Tasks...)
	}
	return merged, nil
}

func loadRecordFile(path string) (models.Records, error) {
	var r models.Records
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return r, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return r, nil
}

func printDefects(w io.Writer, defects []models.Defect, summary models.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if len(defects) > 0 {
		fmt.Fprintln(tw, "SEVERITY\tTYPE\tENTITY\tID\tFIELD\tMESSAGE")
		for _, d := range defects {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", d.Severity, d.Kind, d.Entity, d.EntityID, d.Field, d.Message)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d errors, %d warnings, %d info\n", summary.Errors, summary.Warnings, summary.Info)
	return err
}
