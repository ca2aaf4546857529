package learn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNoExecutions is returned by Evaluate before anything ran.
var ErrNoExecutions = errors.New("no models executed")

// Source is the dataset view a Runner trains on.
type Source interface {
	X(section string) (dataframe.DataFrame, error)
	Y(section string) (series.Series, error)
	Sections() []string
	HasSections() bool
}

// Execution records one model trained on one fold of one repetition.
type Execution struct {
	ID         uuid.UUID     `json:"id"`
	Time       int           `json:"time"`
	Validation string        `json:"validation"`
	Fold       int           `json:"fold"`
	Model      string        `json:"model"`
	Section    string        `json:"section,omitempty"`
	TestIndex  []int         `json:"test_index"`
	Truth      []int         `json:"truth"`
	Predicted  []int         `json:"predicted"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Runner holds the validation plan and every execution so far. Executions
// accumulate across Execute calls.
type Runner struct {
	validations []Validation
	params      Params
	workers     int
	log         *slog.Logger
	validate    *validator.Validate

	mu         sync.Mutex
	executions []Execution
}

// RunnerOption configures NewRunner.
type RunnerOption func(*Runner)

// WithWorkers bounds concurrent fits. Values below 1 use GOMAXPROCS.
func WithWorkers(n int) RunnerOption { return func(r *Runner) { r.workers = n } }

// WithParams sets model parameters.
func WithParams(p Params) RunnerOption { return func(r *Runner) { r.params = p } }

// WithLogger routes progress logs to l.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner starts with a single 70% train split.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		validations: []Validation{{Name: ValidationSplit, TrainSize: DefaultTrainSize}},
		log:         slog.Default(),
		validate:    validator.New(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// SetValidations replaces the validation plan. Duplicate names are kept once.
func (r *Runner) SetValidations(names []string, p ValidationParams) error {
	if err := r.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInput, err)
	}
	if len(names) == 0 {
		names = []string{ValidationSplit}
	}
	seen := map[string]struct{}{}
	var vals []Validation
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		v, err := NewValidation(n, p)
		if err != nil {
			return err
		}
		vals = append(vals, v)
	}
	r.validations = vals
	return nil
}

// Validations returns the current plan.
func (r *Runner) Validations() []Validation { return append([]Validation(nil), r.validations...) }

// Executions returns a copy of every recorded execution.
func (r *Runner) Executions() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Execution(nil), r.executions...)
}

type job struct {
	section    string
	time       int
	validation string
	fold       int
	model      string
	split      Fold
}

// Execute trains every model on every fold of every validation, times times. With
// an empty section on a sectioned source each section runs separately, skipping
// sections that hold no numeric feature (the target's own section, say).
func (r *Runner) Execute(ctx context.Context, src Source, models []string, times int, section string) error {
	if len(models) == 0 {
		models = Models()
	}
	for _, m := range models {
		if _, err := NewModel(m, r.params); err != nil {
			return err
		}
	}
	if times < 1 {
		return fmt.Errorf("%w: times must be at least 1, got %d", ErrInput, times)
	}
	sections := []string{section}
	implicit := section == "" && src.HasSections()
	if implicit {
		sections = src.Sections()
	}

	type data struct {
		x [][]float64
		y []int
	}
	sets := map[string]data{}
	var jobs []job
	for _, sec := range sections {
		if implicit {
			df, err := src.X(sec)
			if err != nil {
				return fmt.Errorf("section %q: %w", sec, err)
			}
			if df.Ncol() == 0 {
				r.log.Warn("skipping section without numeric features", "section", sec)
				continue
			}
		}
		x, y, err := matrix(src, sec)
		if err != nil {
			if sec != "" {
				return fmt.Errorf("section %q: %w", sec, err)
			}
			return err
		}
		sets[sec] = data{x: x, y: y}
		for t := 0; t < times; t++ {
			for _, v := range r.validations {
				folds, err := v.Folds(len(x), uint64(t))
				if err != nil {
					return err
				}
				for f, split := range folds {
					for _, m := range models {
						jobs = append(jobs, job{section: sec, time: t, validation: v.Name, fold: f, model: m, split: split})
					}
				}
			}
		}
	}

	if len(sets) == 0 {
		return fmt.Errorf("%w: no section has numeric feature columns", ErrInput)
	}

	results := make([]Execution, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := sets[j.section]
			ex, err := r.run(j, d.x, d.y)
			if err != nil {
				return fmt.Errorf("%s fold %d of %s (time %d): %w", j.model, j.fold, j.validation, j.time, err)
			}
			results[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.mu.Lock()
	r.executions = append(r.executions, results...)
	r.mu.Unlock()
	r.log.Info("models executed", "runs", len(results), "models", models, "times", times)
	return nil
}

func (r *Runner) run(j job, x [][]float64, y []int) (Execution, error) {
	start := time.Now()
	model, err := NewModel(j.model, r.params)
	if err != nil {
		return Execution{}, err
	}
	trainX, trainY := pick(x, y, j.split.Train)
	testX, testY := pick(x, y, j.split.Test)
	if err := model.Fit(trainX, trainY); err != nil {
		return Execution{}, err
	}
	pred, err := model.Predict(testX)
	if err != nil {
		return Execution{}, err
	}
	return Execution{
		ID:         uuid.New(),
		Time:       j.time,
		Validation: j.validation,
		Fold:       j.fold,
		Model:      j.model,
		Section:    j.section,
		TestIndex:  append([]int(nil), j.split.Test...),
		Truth:      testY,
		Predicted:  pred,
		Elapsed:    time.Since(start),
	}, nil
}

func pick(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	px := make([][]float64, len(idx))
	py := make([]int, len(idx))
	for i, k := range idx {
		px[i], py[i] = x[k], y[k]
	}
	return px, py
}

// matrix extracts row-major features and integer classes, skipping rows whose class
// is missing. Missing features are rejected.
func matrix(src Source, section string) ([][]float64, []int, error) {
	df, err := src.X(section)
	if err != nil {
		return nil, nil, err
	}
	ys, err := src.Y(section)
	if err != nil {
		return nil, nil, err
	}
	if df.Ncol() == 0 {
		return nil, nil, fmt.Errorf("%w: no numeric feature columns", ErrInput)
	}
	cols := make([][]float64, df.Ncol())
	for j, n := range df.Names() {
		cols[j] = df.Col(n).Float()
	}
	yv := ys.Float()
	var (
		x [][]float64
		y []int
	)
	for i := 0; i < df.Nrow(); i++ {
		if math.IsNaN(yv[i]) {
			continue
		}
		row := make([]float64, len(cols))
		for j := range cols {
			if math.IsNaN(cols[j][i]) {
				return nil, nil, fmt.Errorf("%w: missing value in column %q; impute first", ErrInput, df.Names()[j])
			}
			row[j] = cols[j][i]
		}
		x = append(x, row)
		y = append(y, int(yv[i]))
	}
	if len(x) < 2 {
		return nil, nil, fmt.Errorf("%w: %d labelled rows", ErrInput, len(x))
	}
	return x, y, nil
}

// Summary describes one metric of one model across executions.
type Summary struct {
	Model                              string
	Count                              int
	Mean, Std, Min, Q25, Q50, Q75, Max float64
}

// Row is one execution with its scores.
type Row struct {
	Model      string
	Validation string
	Section    string
	Time       int
	Fold       int
	Scores     map[string]float64
}

// Evaluation holds per-metric summaries by model and the complete score table.
type Evaluation struct {
	Metrics  []string
	Describe map[string][]Summary
	Complete []Row
}

// Evaluate scores every execution (restricted to section when set) on metrics.
func (r *Runner) Evaluate(metrics []string, section string) (*Evaluation, error) {
	if len(metrics) == 0 {
		metrics = Metrics()
	}
	var rows []Row
	for _, ex := range r.Executions() {
		if section != "" && ex.Section != section {
			continue
		}
		row := Row{Model: ex.Model, Validation: ex.Validation, Section: ex.Section, Time: ex.Time, Fold: ex.Fold, Scores: map[string]float64{}}
		for _, m := range metrics {
			s, err := Score(m, ex.Truth, ex.Predicted)
			if err != nil {
				return nil, err
			}
			row.Scores[m] = s
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoExecutions
	}
	ev := &Evaluation{Metrics: append([]string(nil), metrics...), Describe: map[string][]Summary{}, Complete: rows}
	for _, m := range metrics {
		byModel := map[string][]float64{}
		for _, row := range rows {
			byModel[row.Model] = append(byModel[row.Model], row.Scores[m])
		}
		names := make([]string, 0, len(byModel))
		for n := range byModel {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			ev.Describe[m] = append(ev.Describe[m], describe(n, byModel[n]))
		}
	}
	return ev, nil
}
