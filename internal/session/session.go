// Package session is the entry point the CLI drives: it owns one loaded dataset and
// routes cleaning, plotting and modelling calls to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/biolearn-cli/internal/cluster"
	"github.com/KaramelBytes/biolearn-cli/internal/dataset"
	"github.com/KaramelBytes/biolearn-cli/internal/learn"
	"github.com/KaramelBytes/biolearn-cli/internal/loader"
	"github.com/KaramelBytes/biolearn-cli/internal/pca"
)

// ErrNoDataset is returned by every operation before a dataset is loaded.
var ErrNoDataset = errors.New("no dataset loaded")

// Session holds at most one dataset. The first successful load wins; later loads
// are ignored.
type Session struct {
	table   *dataset.Table
	log     *slog.Logger
	workers int
	verbose bool
	runner  *learn.Runner
	runOpts []learn.RunnerOption
}

// Option configures New.
type Option func(*Session)

// WithLogger routes diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithWorkers bounds parallel encoding and model fitting. Values below 1 use GOMAXPROCS.
func WithWorkers(n int) Option { return func(s *Session) { s.workers = n } }

// WithRunnerOptions configures the model runner created by Runner.
func WithRunnerOptions(opts ...learn.RunnerOption) Option {
	return func(s *Session) { s.runOpts = append(s.runOpts, opts...) }
}

// Verbose logs class balance and outlier columns when the dataset is loaded.
func Verbose(v bool) Option { return func(s *Session) { s.verbose = v } }

// New returns an empty session.
func New(opts ...Option) *Session {
	s := &Session{log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Load builds the dataset from src unless one is already loaded. It reports whether
// src was used.
func (s *Session) Load(src dataset.Source, target string) (bool, error) {
	if s.loaded() {
		return false, nil
	}
	t, err := dataset.New(src, target, dataset.WithLogger(s.log), dataset.Verbose(s.verbose))
	if err != nil {
		return false, err
	}
	s.table = t
	return true, nil
}

func (s *Session) loaded() bool {
	if s.table == nil {
		return false
	}
	s.log.Warn("dataset already loaded; ignoring new source")
	return true
}

// LoadFile reads path and loads it.
func (s *Session) LoadFile(path, target string, opt loader.Options) (bool, error) {
	if s.loaded() {
		return false, nil
	}
	src, err := loader.LoadFile(path, opt)
	if err != nil {
		return false, err
	}
	return s.Load(src, target)
}

// LoadURL downloads rawURL and loads it.
func (s *Session) LoadURL(ctx context.Context, rawURL, target string, opt loader.Options) (bool, error) {
	if s.loaded() {
		return false, nil
	}
	src, err := loader.LoadURL(ctx, rawURL, opt)
	if err != nil {
		return false, err
	}
	return s.Load(src, target)
}

// Table returns the loaded dataset.
func (s *Session) Table() (*dataset.Table, error) {
	if s.table == nil {
		return nil, ErrNoDataset
	}
	return s.table, nil
}

// ForEachSection calls fn once with section, or once per section when section is
// empty and the dataset is sectioned.
func (s *Session) ForEachSection(section string, fn func(section string) error) error {
	t, err := s.Table()
	if err != nil {
		return err
	}
	if section != "" || !t.HasSections() {
		return fn(section)
	}
	for _, sec := range t.Sections() {
		if err := fn(sec); err != nil {
			return fmt.Errorf("section %q: %w", sec, err)
		}
	}
	return nil
}

// ForEachFeatureSection is ForEachSection for feature-based work: when iterating
// every section it skips, with a warning, sections whose X holds no numeric
// column, such as one holding only the target.
func (s *Session) ForEachFeatureSection(section string, fn func(section string) error) error {
	t, err := s.Table()
	if err != nil {
		return err
	}
	if section != "" || !t.HasSections() {
		return fn(section)
	}
	ran := 0
	for _, sec := range t.Sections() {
		x, err := t.X(sec)
		if err != nil {
			return fmt.Errorf("section %q: %w", sec, err)
		}
		if x.Ncol() == 0 {
			s.log.Warn("skipping section without numeric features", "section", sec)
			continue
		}
		if err := fn(sec); err != nil {
			return fmt.Errorf("section %q: %w", sec, err)
		}
		ran++
	}
	if ran == 0 {
		return fmt.Errorf("%w: no section has numeric feature columns", dataset.ErrInvalidArgument)
	}
	return nil
}

// EncodeCategorical integer-codes cols. With parallel, codes are computed on a
// bounded worker pool and stored once every column succeeded.
func (s *Session) EncodeCategorical(ctx context.Context, cols []string, parallel bool) error {
	t, err := s.Table()
	if err != nil {
		return err
	}
	if !parallel || len(cols) < 2 {
		return t.EncodeCategorical(cols)
	}
	seen := map[string]struct{}{}
	for _, c := range cols {
		n := dataset.NormalizeName(c)
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: column %q listed twice", dataset.ErrInvalidArgument, c)
		}
		seen[n] = struct{}{}
	}

	results := make([][]dataset.Encoded, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range cols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enc, err := t.ComputeEncodings([]string{c})
			if err != nil {
				return err
			}
			results[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	var all []dataset.Encoded
	for _, r := range results {
		all = append(all, r...)
	}
	return t.ApplyEncodings(all)
}

// EncodeDatetime replaces date columns with days since the Unix epoch.
func (s *Session) EncodeDatetime(cols []dataset.DateColumn) error {
	t, err := s.Table()
	if err != nil {
		return err
	}
	return t.EncodeDatetime(cols)
}

// Matrix is the numeric view of one table used by clustering and PCA.
type Matrix struct {
	Rows     [][]float64
	Features []string
	Samples  []string
	Classes  []string
}

// Matrix extracts the feature matrix of section with row labels and target classes.
func (s *Session) Matrix(section string) (*Matrix, error) {
	t, err := s.Table()
	if err != nil {
		return nil, err
	}
	x, err := t.X(section)
	if err != nil {
		return nil, err
	}
	if x.Ncol() == 0 {
		return nil, fmt.Errorf("%w: no numeric feature columns", dataset.ErrInvalidArgument)
	}
	df, err := t.Frame(section)
	if err != nil {
		return nil, err
	}
	m := &Matrix{Features: x.Names(), Classes: df.Col(t.Target()).Records()}
	cols := make([][]float64, x.Ncol())
	for j, n := range m.Features {
		cols[j] = x.Col(n).Float()
	}
	for i := 0; i < x.Nrow(); i++ {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = cols[j][i]
		}
		m.Rows = append(m.Rows, row)
		m.Samples = append(m.Samples, strconv.Itoa(i))
	}
	return m, nil
}

// Dendrogram clusters the rows of section and writes dendogram_<metric>_<method>.png
// into dir. Links below threshold share a color; a threshold of zero or less uses 70%
// of the tallest merge.
func (s *Session) Dendrogram(section, method, metric string, threshold float64, dir string) (string, error) {
	m, err := s.Matrix(section)
	if err != nil {
		return "", err
	}
	tree, err := cluster.Linkage(m.Rows, method, metric)
	if err != nil {
		return "", err
	}
	if threshold <= 0 {
		for _, mg := range tree.Merges {
			threshold = max(threshold, 0.7*mg.Dist)
		}
	}
	return cluster.PlotDendrogram(dir, tree, m.Samples, threshold)
}

// ClusterHeatmap writes heatmap_<metric>_<method>.png into dir with features
// ordered by their clustering.
func (s *Session) ClusterHeatmap(section, method, metric, dir string) (string, error) {
	m, err := s.Matrix(section)
	if err != nil {
		return "", err
	}
	return cluster.PlotHeatmap(dir, m.Rows, m.Features, m.Samples, m.Classes, method, metric)
}

// PCAOutput bundles a fitted PCA with its sphericity test and figures.
type PCAOutput struct {
	Result   *pca.Result
	Bartlett *pca.BartlettResult
	Files    []string
}

// PCA fits n components on section. With dir set it writes PCA.png and
// PCA_variance.png there.
func (s *Session) PCA(section string, n int, dir string) (*PCAOutput, error) {
	m, err := s.Matrix(section)
	if err != nil {
		return nil, err
	}
	res, err := pca.Fit(m.Rows, m.Features, n)
	if err != nil {
		return nil, err
	}
	out := &PCAOutput{Result: res}
	if b, err := pca.Bartlett(m.Rows); err == nil {
		out.Bartlett = b
	} else {
		s.log.Warn("bartlett sphericity test skipped", "error", err)
	}
	if dir == "" {
		return out, nil
	}
	if len(res.Explained) >= 2 {
		p, err := pca.Plot(dir, res, m.Classes)
		if err != nil {
			return nil, err
		}
		out.Files = append(out.Files, p)
	}
	p, err := pca.PlotVariance(dir, res)
	if err != nil {
		return nil, err
	}
	out.Files = append(out.Files, p)
	return out, nil
}

// Runner returns the model runner, created on first use.
func (s *Session) Runner() *learn.Runner {
	if s.runner == nil {
		opts := append([]learn.RunnerOption{learn.WithWorkers(s.workers), learn.WithLogger(s.log)}, s.runOpts...)
		s.runner = learn.NewRunner(opts...)
	}
	return s.runner
}

// ExecuteModels trains models times times on every configured validation.
func (s *Session) ExecuteModels(ctx context.Context, models []string, times int, section string) error {
	t, err := s.Table()
	if err != nil {
		return err
	}
	return s.Runner().Execute(ctx, t, models, times, section)
}

// EvaluateModels scores every execution so far.
func (s *Session) EvaluateModels(metrics []string, section string) (*learn.Evaluation, error) {
	if _, err := s.Table(); err != nil {
		return nil, err
	}
	return s.Runner().Evaluate(metrics, section)
}
