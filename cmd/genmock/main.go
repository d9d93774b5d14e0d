// Command genmock generates deterministic synthetic fixtures for the worker
// and CLI test suites: a daily climate workbook, a tracheid workbook, one
// analysis job per kind and the results the domain package produces for them.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -years 30 -seed 1
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/dendroclim/internal/adapter/tabular"
	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/couchcryptid/dendroclim/internal/stats"
)

// Fixture file names inside the output directory.
const (
	climateFile   = "climate.xlsx"
	tracheidFile  = "tracheids.xlsx"
	jobsFile      = "jobs.json"
	resultsFile   = "results.json"
	tempSheet     = "Temperature"
	precSheet     = "Precipitation"
	trwSheet      = "TRW"
	firstYear     = 1990
	defaultCmp    = "pearson"
	cellsPerRing  = 20
	treesPerStand = 2
)

// processedAt is the fixed clock reading stamped on every generated result.
var processedAt = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/mock", "directory for the generated fixtures")
	years := flag.Int("years", 30, "number of years of daily climate")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *years < 3 {
		flag.Usage()
		return fmt.Errorf("-years must be at least 3, got %d", *years)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	g := newGenerator(*seed, *years)
	climatePath := filepath.Join(*outDir, climateFile)
	if err := g.writeClimate(climatePath); err != nil {
		return fmt.Errorf("writing climate workbook: %w", err)
	}
	log.Printf("wrote climate workbook: %s", climatePath)

	tracheidPath := filepath.Join(*outDir, tracheidFile)
	if err := g.writeTracheids(tracheidPath); err != nil {
		return fmt.Errorf("writing tracheid workbook: %w", err)
	}
	log.Printf("wrote tracheid workbook: %s", tracheidPath)

	// Jobs are built from the workbook as the loaders read it back, so the
	// fixtures exercise the same path as the CLI.
	jobs, err := buildJobs(climatePath)
	if err != nil {
		return fmt.Errorf("building jobs: %w", err)
	}
	if err := writeJSON(filepath.Join(*outDir, jobsFile), jobs); err != nil {
		return fmt.Errorf("writing jobs fixture: %w", err)
	}
	log.Printf("wrote %d jobs", len(jobs))

	results, err := runJobs(jobs)
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(*outDir, resultsFile), results); err != nil {
		return fmt.Errorf("writing results fixture: %w", err)
	}
	for _, r := range results {
		log.Printf("%s: %d rows, %d null cells", r.ID, r.Summary.Rows, r.Summary.NullCells)
	}
	return nil
}

type generator struct {
	src   rand.Source
	years []int
}

func newGenerator(seed uint64, n int) *generator {
	years := make([]int, n)
	for i := range years {
		years[i] = firstYear + i
	}
	return &generator{src: rand.NewPCG(seed, seed), years: years}
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// calendar lists every month/day pair of a leap year.
func calendar() (months, days []int) {
	for d := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC); d.Year() == 2000; d = d.AddDate(0, 0, 1) {
		months = append(months, int(d.Month()))
		days = append(days, d.Day())
	}
	return months, days
}

// wideClimate builds the wide temperature and precipitation sheets plus the
// mean May-June temperature of every year.
func (g *generator) wideClimate() (temp, prec *domain.Frame, summer map[int]float64, err error) {
	months, days := calendar()
	noise := distuv.Normal{Mu: 0, Sigma: 3, Src: g.src}
	rain := distuv.Exponential{Rate: 0.4, Src: g.src}
	wet := distuv.Uniform{Min: 0, Max: 1, Src: g.src}

	temp, prec = domain.NewFrame(), domain.NewFrame()
	for _, f := range []*domain.Frame{temp, prec} {
		if err = f.AddInts(domain.ColMonth, months); err != nil {
			return nil, nil, nil, err
		}
		if err = f.AddInts(domain.ColDay, days); err != nil {
			return nil, nil, nil, err
		}
	}
	summer = make(map[int]float64, len(g.years))
	for _, year := range g.years {
		t := make([]float64, len(months))
		p := make([]float64, len(months))
		var sum float64
		var n int
		for i := range months {
			if months[i] == 2 && days[i] == 29 && !isLeap(year) {
				t[i], p[i] = math.NaN(), math.NaN()
				continue
			}
			doy := float64(time.Date(year, time.Month(months[i]), days[i], 0, 0, 0, 0, time.UTC).YearDay())
			t[i] = round(2-20*math.Cos(2*math.Pi*(doy-15)/365)+noise.Rand(), 1)
			if wet.Rand() < 0.3 {
				p[i] = round(rain.Rand(), 1)
			}
			if months[i] == 5 || months[i] == 6 {
				sum += t[i]
				n++
			}
		}
		summer[year] = sum / float64(n)
		col := strconv.Itoa(year)
		if err = temp.AddFloats(col, t); err != nil {
			return nil, nil, nil, err
		}
		if err = prec.AddFloats(col, p); err != nil {
			return nil, nil, nil, err
		}
	}
	return temp, prec, summer, nil
}

// reference builds a ring width chronology that follows early summer warmth.
func (g *generator) reference(summer map[int]float64) (*domain.Frame, error) {
	var mean float64
	for _, v := range summer {
		mean += v
	}
	mean /= float64(len(summer))
	noise := distuv.Normal{Mu: 0, Sigma: 0.1, Src: g.src}
	trw := make([]float64, len(g.years))
	for i, year := range g.years {
		trw[i] = round(math.Max(0.05, 1+0.05*(summer[year]-mean)+noise.Rand()), 3)
	}
	f := domain.NewFrame()
	if err := f.AddInts(domain.ColYear, g.years); err != nil {
		return nil, err
	}
	if err := f.AddFloats(domain.ColTRW, trw); err != nil {
		return nil, err
	}
	return f, nil
}

func (g *generator) writeClimate(path string) error {
	temp, prec, summer, err := g.wideClimate()
	if err != nil {
		return err
	}
	ref, err := g.reference(summer)
	if err != nil {
		return err
	}
	return tabular.WriteWorkbook(path, []string{tempSheet, precSheet, trwSheet}, []*domain.Frame{temp, prec, ref})
}

// writeTracheids writes one sheet per tree with the headers tracheid
// workbooks use: №, Год, ШГК and the cell measurements.
func (g *generator) writeTracheids(path string) error {
	noise := distuv.Normal{Mu: 0, Sigma: 1.5, Src: g.src}
	width := distuv.Normal{Mu: 1, Sigma: 0.2, Src: g.src}
	years := g.years
	if len(years) > 10 {
		years = years[len(years)-10:]
	}

	sheets := make([]string, treesPerStand)
	frames := make([]*domain.Frame, treesPerStand)
	for tree := range sheets {
		sheets[tree] = fmt.Sprintf("T%d", tree+1)
		var num, year []int
		var trw, d, cwt []float64
		for _, y := range years {
			ring := round(math.Max(0.1, width.Rand()), 3)
			for cell := 1; cell <= cellsPerRing; cell++ {
				pos := float64(cell-1) / float64(cellsPerRing-1)
				num = append(num, cell)
				year = append(year, y)
				trw = append(trw, ring)
				d = append(d, round(math.Max(5, 40-28*pos+noise.Rand()), 2))
				cwt = append(cwt, round(math.Max(1, 2+4*pos+noise.Rand()/3), 2))
			}
		}
		f := domain.NewFrame()
		for _, err := range []error{
			f.AddInts(domain.ColNumber, num),
			f.AddInts("Год", year),
			f.AddFloats("ШГК", trw),
			f.AddFloats("D", d),
			f.AddFloats("CWT", cwt),
		} {
			if err != nil {
				return err
			}
		}
		frames[tree] = f
	}
	return tabular.WriteWorkbook(path, sheets, frames)
}

// buildJobs reads the climate workbook back and emits one job per kind.
func buildJobs(climatePath string) ([]json.RawMessage, error) {
	daily, err := tabular.LoadDailyWorkbook(climatePath, tempSheet, precSheet)
	if err != nil {
		return nil, err
	}
	refFrame, err := tabular.LoadSheet(climatePath, tabular.Selector{Sheet: trwSheet})
	if err != nil {
		return nil, err
	}
	monthly, err := domain.AggregateMonthly(daily, nil)
	if err != nil {
		return nil, err
	}
	dailyRows := daily.Frame().Records()
	refRows := refFrame.Records()

	specs := []map[string]any{
		{
			"id": "mock-comparison", "kind": domain.JobComparison,
			"field": domain.ColTemperature, "lag": domain.LagPreviousYear,
			"daily": dailyRows, "reference": refRows,
		},
		{
			"id": "mock-full-comparison", "kind": domain.JobFullComparison,
			"field": domain.ColTemperature, "secondary": domain.ColPrecipitation,
			"comparator": "spearman", "smoothing_window": 3,
			"monthly": monthly.Frame().Records(), "reference": refRows,
		},
		{
			"id": "mock-growth-season", "kind": domain.JobGrowthSeason,
			"daily": dailyRows,
		},
		{
			"id": "mock-monthly-aggregate", "kind": domain.JobMonthlyAggregate,
			"aggregations": map[string]domain.Aggregation{
				domain.ColTemperature:   domain.AggregationMax,
				domain.ColPrecipitation: domain.AggregationSum,
			},
			"daily": dailyRows,
		},
	}
	jobs := make([]json.RawMessage, len(specs))
	for i, spec := range specs {
		if jobs[i], err = json.Marshal(spec); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// runJobs runs every job under a fixed clock so ProcessedAt is reproducible.
func runJobs(jobs []json.RawMessage) ([]domain.AnalysisResult, error) {
	domain.SetClock(clockwork.NewFakeClockAt(processedAt))
	defer domain.SetClock(nil)

	results := make([]domain.AnalysisResult, 0, len(jobs))
	for _, raw := range jobs {
		job, err := domain.ParseAnalysisJob(domain.RawEvent{Value: raw})
		if err != nil {
			return nil, fmt.Errorf("parse generated job: %w", err)
		}
		result, err := domain.RunAnalysis(job, stats.Lookup, defaultCmp)
		if err != nil {
			return nil, fmt.Errorf("run job %s: %w", job.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
