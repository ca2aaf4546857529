package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Global configuration structure.
type Global struct {
	// Input
	Delimiter  string `mapstructure:"delimiter" yaml:"delimiter"`
	HeaderSize int    `mapstructure:"header_size" yaml:"header_size" validate:"oneof=1 2"`
	Sheet      string `mapstructure:"sheet" yaml:"sheet"`
	Target     string `mapstructure:"target" yaml:"target"`

	// Cleaning
	ImputeMethod    string  `mapstructure:"impute_method" yaml:"impute_method" validate:"oneof=knn mean median most_frequent constant"`
	ImputeNeighbors int     `mapstructure:"impute_neighbors" yaml:"impute_neighbors" validate:"gte=1"`
	OutlierMethod   string  `mapstructure:"outlier_method" yaml:"outlier_method" validate:"omitempty,oneof=limit_method log_transformation mean_value"`
	DropColsPercent float64 `mapstructure:"drop_cols_percent" yaml:"drop_cols_percent" validate:"gte=0,lte=100"`
	DropRowsPercent float64 `mapstructure:"drop_rows_percent" yaml:"drop_rows_percent" validate:"gte=0,lte=100"`

	// Modelling
	ClusterMethod  string `mapstructure:"cluster_method" yaml:"cluster_method" validate:"oneof=single complete average weighted ward centroid median"`
	ClusterMetric  string `mapstructure:"cluster_metric" yaml:"cluster_metric" validate:"oneof=euclidean sqeuclidean cityblock chebyshev cosine correlation"`
	PCAComponents  int    `mapstructure:"pca_components" yaml:"pca_components" validate:"gte=1"`
	SplitTrainSize int    `mapstructure:"split_train_size" yaml:"split_train_size" validate:"gt=0,lt=100"`
	NumFolds       int    `mapstructure:"num_folds" yaml:"num_folds" validate:"gte=2"`
	TimesRepeats   int    `mapstructure:"times_repeats" yaml:"times_repeats" validate:"gte=1"`
	Workers        int    `mapstructure:"workers" yaml:"workers" validate:"gte=0"`

	// Output and runtime
	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`
	LogLevel       string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat      string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"gte=0"`
}

func dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".biolearn"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("delimiter", "")
	v.SetDefault("header_size", 1)
	v.SetDefault("sheet", "")
	v.SetDefault("target", "")
	v.SetDefault("impute_method", "knn")
	v.SetDefault("impute_neighbors", 5)
	v.SetDefault("outlier_method", "")
	v.SetDefault("drop_cols_percent", 100.0)
	v.SetDefault("drop_rows_percent", 100.0)
	v.SetDefault("cluster_method", "ward")
	v.SetDefault("cluster_metric", "euclidean")
	v.SetDefault("pca_components", 2)
	v.SetDefault("split_train_size", 70)
	v.SetDefault("num_folds", 5)
	v.SetDefault("times_repeats", 1)
	v.SetDefault("workers", 0)
	v.SetDefault("output_dir", ".")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("http_timeout_sec", 60)
}

// Defaults returns the configuration used when no file or environment overrides exist.
func Defaults() *Global {
	v := viper.New()
	setDefaults(v)
	var c Global
	_ = v.Unmarshal(&c)
	return &c
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.biolearn/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	path := cfgFile
	if path == "" {
		d, err := dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(d, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env (BIOLEARN_*) > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("BIOLEARN")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		d, err := dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(d)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})
	return v
}()

// Validate checks every field against its allowed range.
func (c *Global) Validate() error {
	var msgs []string
	if err := validate.Struct(c); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		for _, fe := range ves {
			msgs = append(msgs, formatFieldError(fe))
		}
	}
	if _, err := ParseDelimiter(c.Delimiter); err != nil {
		msgs = append(msgs, err.Error())
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ParseDelimiter maps a configured delimiter to a rune. "" means sniff from the file
// name; "tab" and `\t` mean a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Set assigns the field whose yaml key is key, parsing val for its type, and
// validates the result. The config is unchanged on error.
func (c *Global) Set(key, val string) error {
	next := *c
	rv := reflect.ValueOf(&next).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if strings.SplitN(rt.Field(i).Tag.Get("yaml"), ",", 2)[0] != key {
			continue
		}
		f := rv.Field(i)
		switch f.Kind() {
		case reflect.String:
			f.SetString(val)
		case reflect.Int:
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%w: invalid int for %s: %v", ErrInvalid, key, val)
			}
			f.SetInt(int64(n))
		case reflect.Float64:
			x, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("%w: invalid float for %s: %v", ErrInvalid, key, val)
			}
			f.SetFloat(x)
		}
		if err := next.Validate(); err != nil {
			return err
		}
		*c = next
		return nil
	}
	return fmt.Errorf("unknown key: %s", key)
}

// Keys lists the settable keys in declaration order.
func Keys() []string {
	rt := reflect.TypeOf(Global{})
	out := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		out = append(out, strings.SplitN(rt.Field(i).Tag.Get("yaml"), ",", 2)[0])
	}
	return out
}
