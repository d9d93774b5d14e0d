// Command validate performs end-to-end integrity checks across the mock
// fixtures written by genmock: the climate and tracheid workbooks, the job
// messages and the stored results. It verifies row counts, schema conformance,
// result reproducibility and result identity.
//
// Usage:
//
//	go run ./cmd/validate -dir data/mock
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/dendroclim/internal/adapter/tabular"
	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/couchcryptid/dendroclim/internal/stats"
)

// These mirror the names and settings genmock writes.
const (
	climateFile  = "climate.xlsx"
	tracheidFile = "tracheids.xlsx"
	jobsFile     = "jobs.json"
	resultsFile  = "results.json"
	tempSheet    = "Temperature"
	precSheet    = "Precipitation"
	trwSheet     = "TRW"
	defaultCmp   = "pearson"
	ringCells    = 15
)

var processedAt = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// fixtures holds everything loaded from the fixture directory.
type fixtures struct {
	daily     *domain.DailySeries
	reference *domain.Frame
	tracheids *domain.Tracheids
	jobs      []json.RawMessage
	results   []json.RawMessage
}

// storedResult is the part of a stored result checked field by field.
type storedResult struct {
	ID          string               `json:"id"`
	JobID       string               `json:"job_id"`
	Kind        domain.JobKind       `json:"kind"`
	ProcessedAt time.Time            `json:"processed_at"`
	Summary     domain.ResultSummary `json:"summary"`
}

func main() {
	dir := flag.String("dir", "", "directory containing the genmock fixtures")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	// Set a fixed clock matching genmock for ID reproducibility.
	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	fmt.Println("=== Dendroclim Fixture Validation ===")
	fmt.Println()

	fx, err := load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateWorkbook(fx),
		validateJobs(fx),
		validateReproduction(fx),
		validateResultIdentity(fx),
		validateTracheids(fx),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d daily rows, %d reference years, %d tracheid cells, %d jobs, %d results\n",
		fx.daily.Len(), fx.reference.Len(), fx.tracheids.Frame().Len(), len(fx.jobs), len(fx.results))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func load(dir string) (*fixtures, error) {
	climatePath := filepath.Join(dir, climateFile)
	daily, err := tabular.LoadDailyWorkbook(climatePath, tempSheet, precSheet)
	if err != nil {
		return nil, fmt.Errorf("load climate workbook: %w", err)
	}
	ref, err := tabular.LoadSheet(climatePath, tabular.Selector{Sheet: trwSheet})
	if err != nil {
		return nil, fmt.Errorf("load reference sheet: %w", err)
	}
	tracheids, err := tabular.LoadTracheidWorkbook(filepath.Join(dir, tracheidFile), nil)
	if err != nil {
		return nil, fmt.Errorf("load tracheid workbook: %w", err)
	}
	jobs, err := loadJSON(filepath.Join(dir, jobsFile))
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	results, err := loadJSON(filepath.Join(dir, resultsFile))
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	return &fixtures{daily: daily, reference: ref, tracheids: tracheids, jobs: jobs, results: results}, nil
}

func loadJSON(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Climate workbook ──

func validateWorkbook(fx *fixtures) *phase {
	p := &phase{name: "Climate workbook"}

	if err := domain.ReferenceSchema.Validate(fx.reference); err != nil {
		p.errorf("reference sheet: %v", err)
		return p
	}
	refYears := fx.reference.Ints(domain.ColYear)

	perYear := make(map[int]int)
	var years []int
	for _, y := range fx.daily.Frame().Ints(domain.ColYear) {
		if perYear[y] == 0 {
			years = append(years, y)
		}
		perYear[y]++
	}
	if !slices.Equal(years, refYears) {
		p.errorf("climate years %v differ from reference years %v", years, refYears)
	}
	for _, y := range years {
		want := 365
		if time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay() == 366 {
			want = 366
		}
		if perYear[y] != want {
			p.errorf("year %d: %d daily rows, want %d", y, perYear[y], want)
		}
	}
	for _, col := range []string{domain.ColTemperature, domain.ColPrecipitation} {
		if !fx.daily.Frame().Has(col) {
			p.errorf("daily series has no %s column", col)
		}
	}
	return p
}

// ── Phase 2: Job integrity ──

func validateJobs(fx *fixtures) *phase {
	p := &phase{name: "Job integrity"}

	kinds := make(map[domain.JobKind]int)
	ids := make(map[string]bool)
	for i, raw := range fx.jobs {
		job, err := domain.ParseAnalysisJob(domain.RawEvent{Value: raw})
		if err != nil {
			p.errorf("job[%d]: %v", i, err)
			continue
		}
		if ids[job.ID] {
			p.errorf("job[%d]: duplicate id %q", i, job.ID)
		}
		ids[job.ID] = true
		kinds[job.Kind]++
		if job.Daily != nil && job.Daily.Len() != fx.daily.Len() {
			p.errorf("job %s: %d daily rows, workbook has %d", job.ID, job.Daily.Len(), fx.daily.Len())
		}
		if job.Reference != nil && job.Reference.Frame().Len() != fx.reference.Len() {
			p.errorf("job %s: %d reference rows, workbook has %d", job.ID, job.Reference.Frame().Len(), fx.reference.Len())
		}
	}
	for _, kind := range []domain.JobKind{
		domain.JobComparison, domain.JobFullComparison, domain.JobGrowthSeason, domain.JobMonthlyAggregate,
	} {
		if kinds[kind] == 0 {
			p.errorf("no %s job", kind)
		}
	}
	return p
}

// ── Phase 3: Result reproduction ──

func validateReproduction(fx *fixtures) *phase {
	p := &phase{name: "Result reproduction"}

	if len(fx.jobs) != len(fx.results) {
		p.errorf("%d jobs but %d results", len(fx.jobs), len(fx.results))
		return p
	}
	for i, raw := range fx.jobs {
		job, err := domain.ParseAnalysisJob(domain.RawEvent{Value: raw})
		if err != nil {
			p.errorf("job[%d]: %v", i, err)
			continue
		}
		result, err := domain.RunAnalysis(job, stats.Lookup, defaultCmp)
		if err != nil {
			p.errorf("job %s: %v", job.ID, err)
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			p.errorf("job %s: marshal: %v", job.ID, err)
			continue
		}
		got, want, err := decodePair(data, fx.results[i])
		if err != nil {
			p.errorf("job %s: %v", job.ID, err)
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			p.errorf("job %s: rerun differs from stored result (-stored +rerun):\n%s", job.ID, diff)
		}
	}
	return p
}

func decodePair(a, b []byte) (any, any, error) {
	var x, y any
	if err := json.NewDecoder(bytes.NewReader(a)).Decode(&x); err != nil {
		return nil, nil, err
	}
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&y); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// ── Phase 4: Result identity ──

func validateResultIdentity(fx *fixtures) *phase {
	p := &phase{name: "Result identity"}

	seen := make(map[string]bool)
	for i, raw := range fx.results {
		var r storedResult
		if err := json.Unmarshal(raw, &r); err != nil {
			p.errorf("result[%d]: %v", i, err)
			continue
		}
		if !strings.HasPrefix(r.ID, string(r.Kind)+"-") {
			p.errorf("result[%d]: id %q does not start with kind %q", i, r.ID, r.Kind)
		}
		if seen[r.ID] {
			p.errorf("result[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
		if r.JobID == "" {
			p.errorf("result[%d]: missing job_id", i)
		}
		if !r.ProcessedAt.Equal(processedAt) {
			p.errorf("result %s: processed_at %s, want %s", r.ID, r.ProcessedAt, processedAt)
		}
		if r.Summary.Rows == 0 {
			p.errorf("result %s: no rows", r.ID)
		}
	}
	return p
}

// ── Phase 5: Tracheids ──

func validateTracheids(fx *fixtures) *phase {
	p := &phase{name: "Tracheid normalization"}

	if len(fx.tracheids.MeasurementColumns()) == 0 {
		p.errorf("tracheid workbook has no measurement columns")
	}
	norm, err := domain.NormalizeTracheids(fx.tracheids, ringCells)
	if err != nil {
		p.errorf("normalize: %v", err)
		return p
	}
	f := norm.Frame()
	trees, years := f.Strings(domain.ColTree), f.Ints(domain.ColYear)
	cells := make(map[string]int)
	for i := range trees {
		cells[trees[i]+"/"+strconv.Itoa(years[i])]++
	}
	for ring, n := range cells {
		if n != ringCells {
			p.errorf("ring %s: %d cells after normalization, want %d", ring, n, ringCells)
		}
	}
	return p
}
