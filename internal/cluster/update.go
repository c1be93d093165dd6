package cluster

import (
	"strings"
)

// GPUUpdate is a partial update of a GPU. Nil fields are left untouched.
type GPUUpdate struct {
	Temperature    *float64      `json:"temperature,omitempty"`
	PowerDraw      *float64      `json:"powerDraw,omitempty"`
	PowerLimit     *float64      `json:"powerLimit,omitempty"`
	Utilization    *float64      `json:"utilization,omitempty"`
	MemoryUsedMiB  *int          `json:"memoryUsedMiB,omitempty"`
	Health         *HealthStatus `json:"health,omitempty"`
	ECCErrors      *ECCCounters  `json:"eccErrors,omitempty"`
	ClearXIDErrors bool          `json:"clearXidErrors,omitempty"`
}

// Ptr returns a pointer to v, for building GPUUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}

// IsEmpty reports whether u changes nothing.
func (u GPUUpdate) IsEmpty() bool {
	return u.Temperature == nil && u.PowerDraw == nil && u.PowerLimit == nil &&
		u.Utilization == nil && u.MemoryUsedMiB == nil && u.Health == nil &&
		u.ECCErrors == nil && !u.ClearXIDErrors
}

// Apply writes the set fields of u onto g and returns the applied values
// keyed by their JSON field names.
func (u GPUUpdate) Apply(g *GPU) map[string]any {
	applied := make(map[string]any)
	if u.Temperature != nil {
		g.Temperature = *u.Temperature
		applied["temperature"] = *u.Temperature
	}
	if u.PowerDraw != nil {
		g.PowerDraw = *u.PowerDraw
		applied["powerDraw"] = *u.PowerDraw
	}
	if u.PowerLimit != nil {
		g.PowerLimit = *u.PowerLimit
		applied["powerLimit"] = *u.PowerLimit
	}
	if u.Utilization != nil {
		g.Utilization = *u.Utilization
		applied["utilization"] = *u.Utilization
	}
	if u.MemoryUsedMiB != nil {
		g.MemoryUsedMiB = *u.MemoryUsedMiB
		applied["memoryUsedMiB"] = *u.MemoryUsedMiB
	}
	if u.Health != nil {
		g.Health = *u.Health
		applied["health"] = string(*u.Health)
	}
	if u.ECCErrors != nil {
		g.ECCErrors = *u.ECCErrors
		applied["eccErrors"] = *u.ECCErrors
	}
	if u.ClearXIDErrors {
		g.XIDErrors = nil
		applied["clearXidErrors"] = true
	}
	return applied
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
