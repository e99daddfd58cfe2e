// Package deployment resolves the blue/green identity of the running process. The identity
// is fixed before the first request is served; switching colors means replacing the process.
package deployment

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spec-kit/k8s-test-service/internal/config"
)

// Color is a blue/green deployment slot.
type Color string

const (
	ColorBlue  Color = "blue"
	ColorGreen Color = "green"
)

// ParseColor accepts "blue" or "green" in any case.
func ParseColor(s string) (Color, error) {
	switch Color(strings.ToLower(strings.TrimSpace(s))) {
	case ColorBlue:
		return ColorBlue, nil
	case ColorGreen:
		return ColorGreen, nil
	default:
		return "", fmt.Errorf("unknown deployment color %q", s)
	}
}

// Hex returns the display color used by the per-slot endpoints.
func (c Color) Hex() string {
	if c == ColorGreen {
		return "#00CC66"
	}
	return "#0066CC"
}

// Identity is the immutable deployment identity. Its fields are unexported and it has no
// mutators; copies are handed out by value.
type Identity struct {
	version     string
	color       Color
	instanceID  string
	hostname    string
	environment string
}

// Snapshot is the read-only view returned to callers.
type Snapshot struct {
	Version     string `json:"version"`
	Color       Color  `json:"color"`
	InstanceID  string `json:"instance_id"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// Resolve builds the identity from configuration. When no instance id is configured the
// hostname and pid are used, matching how pods are usually told apart.
func Resolve(app config.AppConfig, cfg config.DeploymentConfig) (Identity, error) {
	color, err := ParseColor(cfg.Color)
	if err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(app.Version) == "" {
		return Identity{}, errors.New("deployment version must not be empty")
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown"
	}
	instanceID := strings.TrimSpace(cfg.InstanceID)
	if instanceID == "" {
		instanceID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}

	return Identity{
		version:     app.Version,
		color:       color,
		instanceID:  instanceID,
		hostname:    hostname,
		environment: app.Env,
	}, nil
}

// Current returns the identity.
func (i Identity) Current() Snapshot {
	return Snapshot{
		Version:     i.version,
		Color:       i.color,
		InstanceID:  i.instanceID,
		Hostname:    i.hostname,
		Environment: i.environment,
	}
}

// Valid reports whether the identity was resolved.
func (i Identity) Valid() bool {
	return i.version != "" && i.color != "" && i.instanceID != ""
}

// Version returns the application version reported to clients.
func (i Identity) Version() string { return i.version }

// Color returns the blue/green slot this process serves.
func (i Identity) Color() Color { return i.color }

// InstanceID returns the pod or host identifier of this replica.
func (i Identity) InstanceID() string { return i.instanceID }
