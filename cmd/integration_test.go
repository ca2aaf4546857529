package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its children to its default so state does
// not leak between invocations of the shared rootCmd.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			def := strings.Trim(fl.DefValue, "[]")
			vals := []string{}
			if def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args in an isolated HOME and returns stdout.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is execCmd for commands expected to succeed.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BIOLEARN_LOG_LEVEL", "error")
	return home
}

// writeFlat writes 20 patients whose weight separates the two diagnoses; weight is
// missing for patients 3 and 11.
func writeFlat(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Age,Weight,Diagnosis,Site\n")
	for i := 0; i < 20; i++ {
		diag, weight := "healthy", 50+i
		if i%2 == 1 {
			diag, weight = "sick", 90+i
		}
		w := fmt.Sprint(weight)
		if i == 3 || i == 11 {
			w = "NA"
		}
		fmt.Fprintf(&b, "%d,%s,%s,%s\n", 30+i%7, w, diag, []string{"a", "b"}[i%2])
	}
	p := filepath.Join(dir, "patients.csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

// writeSectioned writes a two-level header with clinical and proteomics sections.
func writeSectioned(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Clinical,,Proteomics,,\n")
	b.WriteString("Age,Diagnosis,P1,P2,P3\n")
	for i := 0; i < 12; i++ {
		diag, base := "healthy", 1.0
		if i%2 == 1 {
			diag, base = "sick", 10.0
		}
		fmt.Fprintf(&b, "%d,%s,%.2f,%.2f,%.2f\n", 40+i, diag, base+0.1*float64(i), 2*base-0.05*float64(i*i%5), 0.3*float64(i%4))
	}
	p := filepath.Join(dir, "omics.csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

func TestCLI_Sections(t *testing.T) {
	home := isolate(t)
	out := runCmd(t, "sections", writeFlat(t, home), "--target", "Diagnosis")
	assert.Contains(t, out, "Layout: flat")
	assert.Contains(t, out, "Target: diagnosis")
	assert.Contains(t, out, "Shape: 20 rows x 4 columns")
	assert.Contains(t, out, "healthy: 10 (50.0%)")

	out = runCmd(t, "sections", writeSectioned(t, home), "-t", "diagnosis", "--header-size", "2")
	assert.Contains(t, out, "Layout: sectioned")
	assert.Contains(t, out, "  - clinical (2 columns)")
	assert.Contains(t, out, "  - proteomics (4 columns)")
}

func TestCLI_RequiresTarget(t *testing.T) {
	home := isolate(t)
	_, err := execCmd(t, "sections", writeFlat(t, home))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target column is required")

	_, err = execCmd(t, "sections", "-t", "diagnosis")
	require.Error(t, err)
}

func TestCLI_Missing(t *testing.T) {
	home := isolate(t)
	out := filepath.Join(home, "out")
	text := runCmd(t, "missing", writeFlat(t, home), "-t", "diagnosis", "--plot", "count", "-o", out)
	assert.Contains(t, text, "weight")
	assert.Contains(t, text, "10.00")
	assert.FileExists(t, filepath.Join(out, "missing_column.png"))

	_, err := execCmd(t, "missing", writeFlat(t, home), "-t", "diagnosis", "--plot", "ratio")
	require.Error(t, err)
	_, err = execCmd(t, "missing", writeFlat(t, home), "-t", "diagnosis", "--axis", "diagonal")
	require.Error(t, err)
}

func TestCLI_CleanThenLearn(t *testing.T) {
	home := isolate(t)
	out := filepath.Join(home, "out")
	text := runCmd(t, "clean", writeFlat(t, home), "-t", "diagnosis",
		"--impute", "mean", "--encode", "site", "--drop", "age", "-o", out)
	cleaned := filepath.Join(out, "cleaned.csv")
	assert.Contains(t, text, "✓ Wrote "+cleaned)
	b, err := os.ReadFile(cleaned)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "weight,diagnosis,site\n"))
	assert.NotContains(t, string(b), "NaN")

	text = runCmd(t, "learn", cleaned, "-t", "diagnosis", "--models", "nearest_centroid",
		"--validations", "split,kfold", "--folds", "4", "--metrics", "accuracy", "--save-runs", "-o", out)
	assert.Contains(t, text, "accuracy  nearest_centroid  5")
	assert.FileExists(t, filepath.Join(out, "metrics_accuracy.png"))
	assert.FileExists(t, filepath.Join(out, "executions.json"))
}

func TestCLI_LearnRejectsMissingFeatures(t *testing.T) {
	home := isolate(t)
	_, err := execCmd(t, "learn", writeFlat(t, home), "-t", "diagnosis", "--no-plot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "impute first")
}

func TestCLI_SectionedCleanClusterPCA(t *testing.T) {
	home := isolate(t)
	src := writeSectioned(t, home)
	out := filepath.Join(home, "out")
	runCmd(t, "clean", src, "-t", "diagnosis", "--header-size", "2", "--impute", "none", "-o", out)
	assert.FileExists(t, filepath.Join(out, "cleaned_clinical.csv"))
	assert.FileExists(t, filepath.Join(out, "cleaned_proteomics.csv"))

	runCmd(t, "cluster", "dendrogram", src, "-t", "diagnosis", "--header-size", "2",
		"--section", "proteomics", "--method", "average", "-o", out)
	assert.FileExists(t, filepath.Join(out, "proteomics", "dendogram_euclidean_average.png"))

	runCmd(t, "cluster", "heatmap", src, "-t", "diagnosis", "--header-size", "2", "-s", "proteomics", "-o", out)
	assert.FileExists(t, filepath.Join(out, "proteomics", "heatmap_euclidean_ward.png"))

	text := runCmd(t, "pca", src, "-t", "diagnosis", "--header-size", "2", "-s", "proteomics", "-o", out)
	assert.Contains(t, text, "PC1")
	assert.Contains(t, text, "Bartlett:")
	assert.FileExists(t, filepath.Join(out, "proteomics", "PCA.png"))
	assert.FileExists(t, filepath.Join(out, "proteomics", "PCA_variance.png"))
}

// writeOutcomeSection writes proteomics and metabolomics sections with the outcome
// in a section of its own.
func writeOutcomeSection(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Proteomics,,Metabolomics,,Outcome\n")
	b.WriteString("P1,P2,M1,M2,Outcome\n")
	for i := 0; i < 12; i++ {
		outcome, base := "healthy", 1.0
		if i%2 == 1 {
			outcome, base = "sick", 10.0
		}
		fmt.Fprintf(&b, "%.2f,%.2f,%.2f,%.2f,%s\n",
			base+0.1*float64(i), 0.3*float64(i%4), 2*base-0.05*float64(i*i%5), 0.2*float64(i%3), outcome)
	}
	p := filepath.Join(dir, "layers.csv")
	require.NoError(t, os.WriteFile(p, []byte(b.String()), 0o644))
	return p
}

func TestCLI_AllSectionsSkipOutcomeSection(t *testing.T) {
	home := isolate(t)
	src := writeOutcomeSection(t, home)
	out := filepath.Join(home, "out")

	text := runCmd(t, "pca", src, "-t", "outcome", "--header-size", "2", "-n", "2", "-o", out)
	assert.Contains(t, text, "## proteomics")
	assert.Contains(t, text, "## metabolomics")
	assert.NotContains(t, text, "## outcome")
	assert.FileExists(t, filepath.Join(out, "proteomics", "PCA.png"))
	assert.FileExists(t, filepath.Join(out, "metabolomics", "PCA.png"))
	assert.NoDirExists(t, filepath.Join(out, "outcome"))

	runCmd(t, "cluster", "dendrogram", src, "-t", "outcome", "--header-size", "2", "--method", "average", "-o", out)
	assert.FileExists(t, filepath.Join(out, "metabolomics", "dendogram_euclidean_average.png"))

	runCmd(t, "plot", "heatmap", src, "-t", "outcome", "--header-size", "2", "-o", out)
	assert.FileExists(t, filepath.Join(out, "correlation_proteomics.png"))
	assert.NoFileExists(t, filepath.Join(out, "correlation_outcome.png"))

	text = runCmd(t, "learn", src, "-t", "outcome", "--header-size", "2",
		"--models", "nearest_centroid", "--metrics", "accuracy,f1", "--save-runs", "-o", out)
	assert.Contains(t, text, "accuracy  nearest_centroid  2")
	assert.FileExists(t, filepath.Join(out, "metrics_accuracy.png"))
	assert.FileExists(t, filepath.Join(out, "metrics_f1.png"))
	b, err := os.ReadFile(filepath.Join(out, "executions.json"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"proteomics"`)
	assert.Contains(t, string(b), `"metabolomics"`)
	assert.NotContains(t, string(b), `"outcome"`)
}

func TestCLI_ProfileAndPlots(t *testing.T) {
	home := isolate(t)
	src := writeSectioned(t, home)
	out := filepath.Join(home, "out")
	runCmd(t, "profile", src, "-t", "diagnosis", "--header-size", "2", "-o", out)
	assert.FileExists(t, filepath.Join(out, "profile_clinical.html"))
	assert.FileExists(t, filepath.Join(out, "profile_proteomics.html"))
	runCmd(t, "profile", src, "-t", "diagnosis", "--header-size", "2", "-s", "clinical", "--markdown", "-o", out)
	assert.FileExists(t, filepath.Join(out, "profile_clinical.md"))

	runCmd(t, "plot", "heatmap", src, "-t", "diagnosis", "--header-size", "2", "-s", "proteomics", "--values", "--hide-upper", "-o", out)
	assert.FileExists(t, filepath.Join(out, "correlation_proteomics.png"))

	runCmd(t, "plot", "pairplot", src, "-t", "diagnosis", "--header-size", "2", "-s", "proteomics", "--cols", "p1,p2", "-o", out)
	assert.FileExists(t, filepath.Join(out, "pairplot_proteomics.png"))
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolate(t)
	runCmd(t, "config", "set", "num_folds", "3")
	_, err := os.Stat(filepath.Join(home, ".biolearn", "config.yaml"))
	require.NoError(t, err)

	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "num_folds: 3")

	_, err = execCmd(t, "config", "set", "num_folds", "1")
	require.Error(t, err)
	_, err = execCmd(t, "config", "set", "api_key", "x")
	require.Error(t, err)
}
