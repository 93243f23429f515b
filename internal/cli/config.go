package cli

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/errors"
)

// Tuning is the optional TOML tuning file read by the resolve command. Every
// field is optional; zero values fall back to the engine defaults.
//
// Example:
//
//	tolerance = 0.97
//	max_iterations = 80
//	cascade_fraction = 0.75
//
//	[thresholds]
//	required = 0
//	strong = 3
//	medium = 6
//	weak = -1
type Tuning struct {
	Tolerance       float64            `toml:"tolerance"`
	MaxIterations   int                `toml:"max_iterations"`
	CascadeFraction float64            `toml:"cascade_fraction"`
	Thresholds      *engine.Thresholds `toml:"thresholds"`
}

// loadTuning reads and parses a tuning file.
func loadTuning(path string) (Tuning, error) {
	if err := errors.ValidatePath(path); err != nil {
		return Tuning{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tuning{}, errors.New(errors.ErrCodeFileNotFound, "tuning file %s not found", path)
		}
		return Tuning{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "failed to read tuning file %s", path)
	}

	var t Tuning
	if err := toml.Unmarshal(data, &t); err != nil {
		return Tuning{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "failed to parse tuning file %s", path)
	}
	return t, nil
}

// applyTo overlays the tuning values onto engine options. Flags that were set
// explicitly keep their value; only zero fields are overridden.
func (t Tuning) applyTo(opts *engine.Options) {
	if opts.Tolerance == 0 && t.Tolerance != 0 {
		opts.Tolerance = t.Tolerance
	}
	if opts.MaxIterations == 0 && t.MaxIterations != 0 {
		opts.MaxIterations = t.MaxIterations
	}
	if opts.CascadeFraction == 0 && t.CascadeFraction != 0 {
		opts.CascadeFraction = t.CascadeFraction
	}
	if opts.Thresholds == nil && t.Thresholds != nil {
		opts.Thresholds = t.Thresholds
	}
}
