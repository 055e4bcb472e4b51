// Package config holds the tuning knobs for candidate graph construction and
// solving. All fields are optional pointers so a partial JSON file overrides
// only what it names; the Get* accessors fall back to the defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Tuning represents the root configuration for a tracking run. The same JSON
// shape is accepted on disk and as the params blob persisted with each run.
type Tuning struct {
	// Graph construction params
	MaxEdgeDistance *float64  `json:"max_edge_distance,omitempty"`
	UseDrift        *bool     `json:"use_drift,omitempty"`
	DriftVector     []float64 `json:"drift_vector,omitempty"` // explicit drift; overrides estimation

	// Cost params
	NodeWeight     *float64 `json:"node_weight,omitempty"`
	NodeConstant   *float64 `json:"node_constant,omitempty"`
	EdgeWeight     *float64 `json:"edge_weight,omitempty"`
	EdgeConstant   *float64 `json:"edge_constant,omitempty"`
	AppearConstant *float64 `json:"appear_constant,omitempty"`
	SplitConstant  *float64 `json:"split_constant,omitempty"`

	// Constraint params
	MaxParents   *int  `json:"max_parents,omitempty"`
	MaxChildren  *int  `json:"max_children,omitempty"`
	FlowSymmetry *bool `json:"flow_symmetry,omitempty"`

	// Solve params
	TimeLimit *string `json:"time_limit,omitempty"` // duration string like "120s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Tuning with all fields set to nil, so every accessor
// reports its default.
func Empty() *Tuning {
	return &Tuning{}
}

// Default returns a Tuning with every field explicitly set to its default
// value. Useful for rendering a complete params blob.
func Default() *Tuning {
	return &Tuning{
		MaxEdgeDistance: ptrFloat64(50.0),
		UseDrift:        ptrBool(false),
		NodeWeight:      ptrFloat64(-1.0),
		NodeConstant:    ptrFloat64(0.0),
		EdgeWeight:      ptrFloat64(1.0),
		EdgeConstant:    ptrFloat64(-20.0),
		AppearConstant:  ptrFloat64(2.0),
		SplitConstant:   ptrFloat64(1.0),
		MaxParents:      ptrInt(1),
		MaxChildren:     ptrInt(2),
		FlowSymmetry:    ptrBool(false),
		TimeLimit:       ptrString("120s"),
	}
}

// Load reads a Tuning from a JSON file. Fields omitted from the file keep
// their defaults, so partial configs are safe.
func Load(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Tuning) Validate() error {
	if c.MaxEdgeDistance != nil && *c.MaxEdgeDistance < 0 {
		return fmt.Errorf("max_edge_distance must be non-negative, got %f", *c.MaxEdgeDistance)
	}

	if n := len(c.DriftVector); n != 0 && n != 2 && n != 3 {
		return fmt.Errorf("drift_vector must have 2 or 3 components, got %d", n)
	}

	if c.MaxParents != nil && *c.MaxParents < 0 {
		return fmt.Errorf("max_parents must be non-negative, got %d", *c.MaxParents)
	}

	if c.MaxChildren != nil && *c.MaxChildren < 0 {
		return fmt.Errorf("max_children must be non-negative, got %d", *c.MaxChildren)
	}

	if c.TimeLimit != nil && *c.TimeLimit != "" {
		if _, err := time.ParseDuration(*c.TimeLimit); err != nil {
			return fmt.Errorf("invalid time_limit '%s': %w", *c.TimeLimit, err)
		}
	}

	return nil
}

// JSON renders the tuning as a compact JSON blob for persistence alongside
// a run.
func (c *Tuning) JSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// GetMaxEdgeDistance returns the max_edge_distance value or the default.
func (c *Tuning) GetMaxEdgeDistance() float64 {
	if c.MaxEdgeDistance == nil {
		return 50.0
	}
	return *c.MaxEdgeDistance
}

// GetUseDrift returns the use_drift value or the default.
func (c *Tuning) GetUseDrift() bool {
	if c.UseDrift == nil {
		return false
	}
	return *c.UseDrift
}

// GetNodeWeight returns the node_weight value or the default.
func (c *Tuning) GetNodeWeight() float64 {
	if c.NodeWeight == nil {
		return -1.0
	}
	return *c.NodeWeight
}

// GetNodeConstant returns the node_constant value or the default.
func (c *Tuning) GetNodeConstant() float64 {
	if c.NodeConstant == nil {
		return 0.0
	}
	return *c.NodeConstant
}

// GetEdgeWeight returns the edge_weight value or the default.
func (c *Tuning) GetEdgeWeight() float64 {
	if c.EdgeWeight == nil {
		return 1.0
	}
	return *c.EdgeWeight
}

// GetEdgeConstant returns the edge_constant value or the default.
func (c *Tuning) GetEdgeConstant() float64 {
	if c.EdgeConstant == nil {
		return -20.0
	}
	return *c.EdgeConstant
}

// GetAppearConstant returns the appear_constant value or the default.
func (c *Tuning) GetAppearConstant() float64 {
	if c.AppearConstant == nil {
		return 2.0
	}
	return *c.AppearConstant
}

// GetSplitConstant returns the split_constant value or the default.
func (c *Tuning) GetSplitConstant() float64 {
	if c.SplitConstant == nil {
		return 1.0
	}
	return *c.SplitConstant
}

// GetMaxParents returns the max_parents value or the default.
func (c *Tuning) GetMaxParents() int {
	if c.MaxParents == nil {
		return 1
	}
	return *c.MaxParents
}

// GetMaxChildren returns the max_children value or the default.
func (c *Tuning) GetMaxChildren() int {
	if c.MaxChildren == nil {
		return 2
	}
	return *c.MaxChildren
}

// GetFlowSymmetry returns the flow_symmetry value or the default.
func (c *Tuning) GetFlowSymmetry() bool {
	if c.FlowSymmetry == nil {
		return false
	}
	return *c.FlowSymmetry
}

// GetTimeLimit parses and returns the TimeLimit as a time.Duration.
func (c *Tuning) GetTimeLimit() time.Duration {
	if c.TimeLimit == nil || *c.TimeLimit == "" {
		return 120 * time.Second // default
	}
	d, err := time.ParseDuration(*c.TimeLimit)
	if err != nil {
		return 120 * time.Second // default on parse error
	}
	return d
}
