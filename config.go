package hubness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseConfig reads a YAML document into a Config, starting from
// DefaultConfig. Unknown keys are rejected. An empty document yields the
// defaults.
//
//	n_neighbors: 10
//	algorithm: hnsw
//	metric: euclidean
//	hubness: mp
//	hubness_params:
//	  method: empiric
//	contamination: 0.1
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("hubness: parse config: %v: %w", err, ErrInvalidConfig)
	}

	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the YAML config file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hubness: read config: %w", err)
	}
	return ParseConfig(data)
}

// UnmarshalYAML accepts a number or the string "auto".
func (c *Contamination) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseContamination(value.Value)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalYAML writes ContaminationAuto as "auto".
func (c Contamination) MarshalYAML() (interface{}, error) {
	if c == ContaminationAuto {
		return "auto", nil
	}
	return float64(c), nil
}

// String returns "auto" or the fraction.
func (c Contamination) String() string {
	if c == ContaminationAuto {
		return "auto"
	}
	return strconv.FormatFloat(float64(c), 'g', -1, 64)
}

// ParseContamination parses "auto" or a fraction. An explicit zero is
// rejected since it would read back as auto; the upper bound is checked when
// the config is validated.
func ParseContamination(s string) (Contamination, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "auto") || s == "" {
		return ContaminationAuto, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("hubness: contamination must be \"auto\" or a number, got %q: %w", s, ErrInvalidConfig)
	}
	if !(v > 0) {
		return 0, fmt.Errorf("hubness: contamination must be in (0, 0.5] or auto, got %q: %w", s, ErrInvalidConfig)
	}
	return Contamination(v), nil
}
