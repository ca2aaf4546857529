package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/biolearn-cli/internal/config"
	"github.com/KaramelBytes/biolearn-cli/internal/loader"
	"github.com/KaramelBytes/biolearn-cli/internal/session"
)

// datasetFlags are shared by every command that loads a table.
type datasetFlags struct {
	target     string
	headerSize int
	delimiter  string
	sheet      string
	section    string
	url        string
	output     string
	verbose    bool
}

var dsFlags datasetFlags

func addDatasetFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVarP(&dsFlags.target, "target", "t", "", "target (class) column; a section name selects that section's label column")
	f.IntVar(&dsFlags.headerSize, "header-size", 0, "header rows: 1, or 2 for section/field headers (default from config)")
	f.StringVar(&dsFlags.delimiter, "delimiter", "", "field delimiter: ',', ';', '|' or 'tab' (default: by extension)")
	f.StringVar(&dsFlags.sheet, "sheet", "", "XLSX sheet name or 1-based index")
	f.StringVarP(&dsFlags.section, "section", "s", "", "restrict the command to one section")
	f.StringVar(&dsFlags.url, "url", "", "load the table from an http(s) URL instead of a file")
	f.StringVarP(&dsFlags.output, "output", "o", "", "output directory for reports and figures (default from config)")
	f.BoolVarP(&dsFlags.verbose, "verbose", "v", false, "log class balance and outlier columns after loading")
}

// datasetArgs accepts a single file argument unless --url is set.
func datasetArgs(cmd *cobra.Command, args []string) error {
	if dsFlags.url != "" {
		return cobra.NoArgs(cmd, args)
	}
	if len(args) != 1 {
		return errors.New("expected exactly one dataset file (or --url)")
	}
	return nil
}

func loaderOptions(c *cfgpkg.Global) (loader.Options, error) {
	opt := loader.DefaultOptions()
	opt.HeaderSize = c.HeaderSize
	if dsFlags.headerSize != 0 {
		opt.HeaderSize = dsFlags.headerSize
	}
	delim := c.Delimiter
	if dsFlags.delimiter != "" {
		delim = dsFlags.delimiter
	}
	d, err := cfgpkg.ParseDelimiter(delim)
	if err != nil {
		return opt, fmt.Errorf("unsupported --delimiter: %w", err)
	}
	opt.Delimiter = d
	sheet := c.Sheet
	if dsFlags.sheet != "" {
		sheet = dsFlags.sheet
	}
	if i, err := strconv.Atoi(sheet); err == nil {
		opt.SheetIndex = i
	} else {
		opt.Sheet = sheet
	}
	if c.HTTPTimeoutSec > 0 {
		opt.HTTPTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
	}
	return opt, nil
}

// openSession loads the dataset named by args or --url into a fresh session.
func openSession(cmd *cobra.Command, args []string, extra ...session.Option) (*session.Session, error) {
	c := settings()
	target := dsFlags.target
	if target == "" {
		target = c.Target
	}
	if strings.TrimSpace(target) == "" {
		return nil, errors.New("target column is required (use --target or set target in config)")
	}
	opt, err := loaderOptions(c)
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithLogger(logger()),
		session.WithWorkers(c.Workers),
		session.Verbose(dsFlags.verbose),
	}
	s := session.New(append(opts, extra...)...)
	if dsFlags.url != "" {
		_, err = s.LoadURL(cmd.Context(), dsFlags.url, target, opt)
	} else {
		_, err = s.LoadFile(args[0], target, opt)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// outputDir is --output, else the configured output_dir.
func outputDir() string {
	if dsFlags.output != "" {
		return dsFlags.output
	}
	return settings().OutputDir
}

// sectionPath names an output file, suffixing the section when there is one.
func sectionPath(dir, stem, section, ext string) string {
	if section != "" {
		stem += "_" + section
	}
	return filepath.Join(dir, stem+ext)
}

// sectionDir is dir itself for a flat table, else a per-section subdirectory.
func sectionDir(dir, section string) string {
	if section == "" {
		return dir
	}
	return filepath.Join(dir, section)
}
