package learn

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Validation names.
const (
	ValidationSplit = "split"
	ValidationKFold = "kfold"
)

// Defaults used by SetValidations when a parameter is zero.
const (
	DefaultTrainSize = 70
	DefaultNumFolds  = 5
)

var ErrUnknownValidation = errors.New("unknown validation")

// Validation is one resampling scheme. TrainSize is a percentage and only used by
// split; NumFolds only by kfold.
type Validation struct {
	Name      string
	NumFolds  int
	TrainSize int
}

// ValidationParams configures SetValidations.
type ValidationParams struct {
	NumFolds  int `validate:"gte=0"`
	TrainSize int `validate:"gte=0,lt=100"`
}

// NewValidation builds a validation by name, filling zero parameters with defaults.
func NewValidation(name string, p ValidationParams) (Validation, error) {
	v := Validation{Name: name}
	switch name {
	case ValidationSplit:
		v.TrainSize = p.TrainSize
		if v.TrainSize == 0 {
			v.TrainSize = DefaultTrainSize
		}
		if v.TrainSize <= 0 || v.TrainSize >= 100 {
			return v, fmt.Errorf("%w: train size %d%% must be within (0,100)", ErrInput, v.TrainSize)
		}
	case ValidationKFold:
		v.NumFolds = p.NumFolds
		if v.NumFolds == 0 {
			v.NumFolds = DefaultNumFolds
		}
		if v.NumFolds < 2 {
			return v, fmt.Errorf("%w: kfold needs at least 2 folds, got %d", ErrInput, v.NumFolds)
		}
	default:
		return v, fmt.Errorf("%w: %q", ErrUnknownValidation, name)
	}
	return v, nil
}

// Fold is one train/test partition of row positions.
type Fold struct {
	Train, Test []int
}

// Folds partitions n rows. seed makes the shuffle reproducible per repetition.
func (v Validation) Folds(n int, seed uint64) ([]Fold, error) {
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	perm := rng.Perm(n)
	switch v.Name {
	case ValidationSplit:
		cut := int(math.Round(float64(n) * float64(v.TrainSize) / 100))
		if cut < 1 || cut >= n {
			return nil, fmt.Errorf("%w: %d rows cannot be split %d%%/%d%%", ErrInput, n, v.TrainSize, 100-v.TrainSize)
		}
		return []Fold{{Train: perm[:cut], Test: perm[cut:]}}, nil
	case ValidationKFold:
		if n < v.NumFolds {
			return nil, fmt.Errorf("%w: %d rows for %d folds", ErrInput, n, v.NumFolds)
		}
		folds := make([]Fold, v.NumFolds)
		start := 0
		for f := range folds {
			size := n / v.NumFolds
			if f < n%v.NumFolds {
				size++
			}
			test := perm[start : start+size]
			train := make([]int, 0, n-size)
			train = append(train, perm[:start]...)
			train = append(train, perm[start+size:]...)
			folds[f] = Fold{Train: train, Test: test}
			start += size
		}
		return folds, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownValidation, v.Name)
}
