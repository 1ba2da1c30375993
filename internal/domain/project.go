package domain

import "time"

// Project is a sandbox image built once from a template archive and reused
// across every submission graded against it.
type Project struct {
	Name              string        `bson:"_id"`
	ImageID           string        `bson:"imageId"`
	Tag               string        `bson:"tag"`
	BuiltAt           time.Time     `bson:"builtAt"`
	ContainerTimeout  *int          `bson:"containerTimeout,omitempty"`
	DefaultExecArgs   []string      `bson:"defaultExecArgs,omitempty"`
	BaselineTests     []string      `bson:"baselineTests"`
}

// Timeout resolves the effective per-submission container timeout: the
// project's override if set, else the caller-supplied service default.
func (p Project) Timeout(serviceDefault time.Duration) time.Duration {
	if p.ContainerTimeout != nil && *p.ContainerTimeout > 0 {
		return time.Duration(*p.ContainerTimeout) * time.Second
	}
	return serviceDefault
}

// HasBaselineTest reports whether name is part of the immutable baseline
// roster discovered when the template was built.
func (p Project) HasBaselineTest(name string) bool {
	for _, t := range p.BaselineTests {
		if t == name {
			return true
		}
	}
	return false
}
