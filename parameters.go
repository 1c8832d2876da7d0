package anvil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/akmonengine/anvil/constraint"
	"github.com/go-gl/mathgl/mgl64"
	jsoniter "github.com/json-iterator/go"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	MaxIterations  = 128
	DefaultWorkers = 1
)

var (
	ErrInvalidParameters = errors.New("anvil: invalid parameters")
	ErrUnknownFormat     = errors.New("anvil: unknown parameters file format")
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	DisallowUnknownFields:  true,
	TagKey:                 "json",
	CaseSensitive:          true,
	ValidateJsonRawMessage: false,
}.Froze()

// Parameters drives a World. The zero value is not usable, start from
// DefaultParameters.
type Parameters struct {
	PenetrationIterations int     `toml:"penetration_iterations" yaml:"penetration_iterations" json:"penetration_iterations"`
	FrictionIterations    int     `toml:"friction_iterations" yaml:"friction_iterations" json:"friction_iterations"`
	Timestep              float64 `toml:"timestep" yaml:"timestep" json:"timestep"`
	Baumgarte             float64 `toml:"baumgarte" yaml:"baumgarte" json:"baumgarte"`
	Slop                  float64 `toml:"slop" yaml:"slop" json:"slop"`
	ContactCaching        bool    `toml:"contact_caching" yaml:"contact_caching" json:"contact_caching"`

	// Gravity acceleration (m/s², or N/kg)
	Gravity mgl64.Vec3 `toml:"gravity" yaml:"gravity" json:"gravity"`

	// BroadPhaseCellSize enables the spatial grid when positive. With 0
	// every collider pair goes to the narrow phase.
	BroadPhaseCellSize float64 `toml:"broad_phase_cell_size" yaml:"broad_phase_cell_size" json:"broad_phase_cell_size"`

	// Workers places the hulls in parallel before the narrow phase
	Workers int `toml:"workers" yaml:"workers" json:"workers"`

	// SleepTime is how long a body must stay under SleepVelocity, linear
	// and angular, before it falls asleep. 0 keeps every body awake.
	SleepTime     float64 `toml:"sleep_time" yaml:"sleep_time" json:"sleep_time"`
	SleepVelocity float64 `toml:"sleep_velocity" yaml:"sleep_velocity" json:"sleep_velocity"`
}

func DefaultParameters() Parameters {
	return Parameters{
		PenetrationIterations: 16,
		FrictionIterations:    8,
		Timestep:              1.0 / 60.0,
		Baumgarte:             0.2,
		Slop:                  0.01,
		ContactCaching:        true,
		Gravity:               mgl64.Vec3{0, -9.81, 0},
		Workers:               DefaultWorkers,
		SleepVelocity:         0.05,
	}
}

// Validate reports the first out of range value. Baumgarte must be at
// least Slop, otherwise the position bias pushes contacts deeper.
func (p Parameters) Validate() error {
	switch {
	case p.PenetrationIterations < 1 || p.PenetrationIterations > MaxIterations:
		return fmt.Errorf("%w: penetration iterations %d not in [1, %d]", ErrInvalidParameters, p.PenetrationIterations, MaxIterations)
	case p.FrictionIterations < 1 || p.FrictionIterations > MaxIterations:
		return fmt.Errorf("%w: friction iterations %d not in [1, %d]", ErrInvalidParameters, p.FrictionIterations, MaxIterations)
	case !(p.Timestep > 0) || math.IsInf(p.Timestep, 1):
		return fmt.Errorf("%w: timestep %v must be positive and finite", ErrInvalidParameters, p.Timestep)
	case !(p.Slop >= 0) || math.IsInf(p.Slop, 1):
		return fmt.Errorf("%w: slop %v must be finite and not negative", ErrInvalidParameters, p.Slop)
	case !(p.Baumgarte >= p.Slop) || math.IsInf(p.Baumgarte, 1):
		return fmt.Errorf("%w: baumgarte %v must be finite and at least slop %v", ErrInvalidParameters, p.Baumgarte, p.Slop)
	case !isFinite(p.Gravity):
		return fmt.Errorf("%w: gravity %v is not finite", ErrInvalidParameters, p.Gravity)
	case !(p.BroadPhaseCellSize >= 0) || math.IsInf(p.BroadPhaseCellSize, 1):
		return fmt.Errorf("%w: broad phase cell size %v must be finite and not negative", ErrInvalidParameters, p.BroadPhaseCellSize)
	case !(p.SleepTime >= 0) || math.IsInf(p.SleepTime, 1):
		return fmt.Errorf("%w: sleep time %v must be finite and not negative", ErrInvalidParameters, p.SleepTime)
	case !(p.SleepVelocity >= 0) || math.IsInf(p.SleepVelocity, 1):
		return fmt.Errorf("%w: sleep velocity %v must be finite and not negative", ErrInvalidParameters, p.SleepVelocity)
	}
	return nil
}

func isFinite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// apply copies the resolution settings into the solver
func (p Parameters) apply(s *constraint.Solver) {
	s.PenetrationIterations = p.PenetrationIterations
	s.FrictionIterations = p.FrictionIterations
	s.Timestep = p.Timestep
	s.Baumgarte = p.Baumgarte
	s.Slop = p.Slop
	s.ContactCaching = p.ContactCaching
}

// LoadParameters reads a parameters file, the format is picked from the
// extension (.toml, .yaml, .yml or .json). Keys absent from the file keep
// their default value.
func LoadParameters(path string) (Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, err
	}

	p, err := DecodeParameters(filepath.Ext(path), data)
	if err != nil {
		return Parameters{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DecodeParameters decodes data in the format named by ext, with or
// without its leading dot.
func DecodeParameters(ext string, data []byte) (Parameters, error) {
	p := DefaultParameters()

	var err error
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&p)
	case "yaml", "yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(&p)
		// an empty document keeps the defaults
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case "json":
		err = json.Unmarshal(data, &p)
	default:
		return Parameters{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return Parameters{}, fmt.Errorf("decode parameters: %w", err)
	}

	if err = p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}
