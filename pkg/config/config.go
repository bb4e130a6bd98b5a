// Package config loads the static mission configuration: target identity,
// bus sizing, the module lists linked into the build, and the pipes and
// subscriptions a ground tool or test harness should set up.
//
// Configuration is a single YAML file. Fields missing from the file keep
// the values from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/backkem/flightbus/pkg/bus"
	"github.com/backkem/flightbus/pkg/msg"
	"github.com/backkem/flightbus/pkg/pipe"
	"github.com/backkem/flightbus/pkg/route"
	"github.com/pion/logging"
	"gopkg.in/yaml.v3"
)

// Target defaults used when the file does not set them.
const (
	DefaultCPUName      = "unknown"
	DefaultCPUID        = 0
	DefaultSpacecraftID = 0x42
)

// Config is the mission configuration.
type Config struct {
	// Mission identifies the mission and target.
	Mission MissionConfig `yaml:"mission"`

	// Bus sizes the software bus.
	Bus BusSizing `yaml:"bus"`

	// CoreModules lists the core modules linked into the executive.
	CoreModules []string `yaml:"core_modules"`

	// StaticApps lists applications linked statically into the executive.
	StaticApps []string `yaml:"static_apps"`

	// BuildEnvironment records key/value facts about the build host.
	BuildEnvironment map[string]string `yaml:"build_environment"`

	// ModuleVersions records the version of each module in the build.
	ModuleVersions map[string]string `yaml:"module_versions"`

	// Subscriptions lists the pipes to create and the messages routed to
	// each.
	Subscriptions []PipeSubscriptions `yaml:"subscriptions"`
}

// MissionConfig identifies the mission and target.
type MissionConfig struct {
	// Name is the mission name.
	Name string `yaml:"name"`

	// Config is the name of the build configuration.
	Config string `yaml:"config"`

	// CPUName is the default processor name.
	// Default: "unknown"
	CPUName string `yaml:"cpu_name"`

	// CPUID is the default processor number.
	// Default: 0
	CPUID uint32 `yaml:"cpu_id"`

	// SpacecraftID is the default spacecraft identifier.
	// Default: 0x42
	SpacecraftID uint32 `yaml:"spacecraft_id"`

	// HeaderVersion is the header version used to build message IDs given
	// as type and application ID.
	// Default: 0
	HeaderVersion uint8 `yaml:"header_version"`
}

// BusSizing sizes the software bus.
type BusSizing struct {
	// MaxRoutes is the number of distinct message IDs that can be routed.
	// Default: route.DefaultMaxRoutes
	MaxRoutes int `yaml:"max_routes"`

	// MaxPipes is the number of pipes that can exist at once.
	// Default: pipe.DefaultMaxPipes
	MaxPipes int `yaml:"max_pipes"`

	// DefaultPipeDepth is used for pipes without an explicit depth.
	// Default: pipe.DefaultDepth
	DefaultPipeDepth int `yaml:"default_pipe_depth"`
}

// PipeSubscriptions names a pipe and the messages routed to it.
type PipeSubscriptions struct {
	// Pipe is the pipe name.
	Pipe string `yaml:"pipe"`

	// Depth is the pipe depth. Zero selects the bus default.
	Depth int `yaml:"depth"`

	// Messages lists the subscribed message IDs.
	Messages []MessageRef `yaml:"messages"`
}

// MessageRef names a message ID either directly or by type and
// application ID.
type MessageRef struct {
	// MsgID is the message ID. Exclusive with Type and ApID.
	MsgID *uint32 `yaml:"msgid,omitempty"`

	// Type is "cmd" or "tlm" (or "command" / "telemetry").
	Type string `yaml:"type,omitempty"`

	// ApID is the application ID.
	ApID *uint16 `yaml:"apid,omitempty"`
}

// Resolve returns the message ID. References given by type and
// application ID use the given header version.
func (r MessageRef) Resolve(version msg.HeaderVersion) (msg.MsgID, error) {
	if r.MsgID != nil {
		if r.Type != "" || r.ApID != nil {
			return msg.InvalidMsgID, fmt.Errorf("msgid cannot be combined with type or apid")
		}
		id := msg.MsgID(*r.MsgID)
		if !id.IsValid() {
			return msg.InvalidMsgID, fmt.Errorf("msgid 0x%X out of range", *r.MsgID)
		}
		return id, nil
	}

	if r.ApID == nil {
		return msg.InvalidMsgID, fmt.Errorf("either msgid or type and apid are required")
	}
	t, err := parseType(r.Type)
	if err != nil {
		return msg.InvalidMsgID, err
	}
	return msg.NewMsgID(version, t, msg.ApID(*r.ApID))
}

func parseType(s string) (msg.Type, error) {
	switch strings.ToLower(s) {
	case "cmd", "command":
		return msg.TypeCommand, nil
	case "tlm", "telemetry":
		return msg.TypeTelemetry, nil
	default:
		return msg.TypeInvalid, fmt.Errorf("invalid message type %q", s)
	}
}

// Default returns the configuration used for fields a file leaves unset.
func Default() *Config {
	return &Config{
		Mission: MissionConfig{
			CPUName:      DefaultCPUName,
			CPUID:        DefaultCPUID,
			SpacecraftID: DefaultSpacecraftID,
		},
		Bus: BusSizing{
			MaxRoutes:        route.DefaultMaxRoutes,
			MaxPipes:         pipe.DefaultMaxPipes,
			DefaultPipeDepth: pipe.DefaultDepth,
		},
	}
}

// Load reads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors. All problems are reported
// together.
func (c *Config) Validate() error {
	var errs []error

	if c.Mission.Name == "" {
		errs = append(errs, fmt.Errorf("mission.name is required"))
	}
	if !msg.HeaderVersion(c.Mission.HeaderVersion).IsValid() {
		errs = append(errs, fmt.Errorf("mission.header_version must be at most %d", msg.MaxHeaderVersion))
	}

	if c.Bus.MaxRoutes < 1 || c.Bus.MaxRoutes > route.MaxRoutesLimit {
		errs = append(errs, fmt.Errorf("bus.max_routes must be between 1 and %d", route.MaxRoutesLimit))
	}
	if c.Bus.MaxPipes < 1 {
		errs = append(errs, fmt.Errorf("bus.max_pipes must be positive"))
	}
	if c.Bus.DefaultPipeDepth < 1 || c.Bus.DefaultPipeDepth > pipe.MaxDepth {
		errs = append(errs, fmt.Errorf("bus.default_pipe_depth must be between 1 and %d", pipe.MaxDepth))
	}
	if len(c.Subscriptions) > c.Bus.MaxPipes {
		errs = append(errs, fmt.Errorf("subscriptions: %d pipes exceed bus.max_pipes", len(c.Subscriptions)))
	}

	version := msg.HeaderVersion(c.Mission.HeaderVersion)
	pipes := make(map[string]bool)
	routes := make(map[msg.MsgID]bool)
	for i, s := range c.Subscriptions {
		if s.Pipe == "" {
			errs = append(errs, fmt.Errorf("subscriptions[%d].pipe is required", i))
		} else if pipes[s.Pipe] {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: duplicate pipe %q", i, s.Pipe))
		}
		pipes[s.Pipe] = true

		if s.Depth < 0 || s.Depth > pipe.MaxDepth {
			errs = append(errs, fmt.Errorf("subscriptions[%d].depth must be between 0 and %d", i, pipe.MaxDepth))
		}
		for j, ref := range s.Messages {
			id, err := ref.Resolve(version)
			if err != nil {
				errs = append(errs, fmt.Errorf("subscriptions[%d].messages[%d]: %w", i, j, err))
				continue
			}
			routes[id] = true
		}
	}
	if len(routes) > c.Bus.MaxRoutes {
		errs = append(errs, fmt.Errorf("subscriptions: %d message IDs exceed bus.max_routes", len(routes)))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// BusConfig returns the bus configuration for this mission.
func (c *Config) BusConfig(factory logging.LoggerFactory) bus.Config {
	return bus.Config{
		MaxRoutes:        c.Bus.MaxRoutes,
		MaxPipes:         c.Bus.MaxPipes,
		DefaultPipeDepth: c.Bus.DefaultPipeDepth,
		LoggerFactory:    factory,
	}
}

// Apply creates the configured pipes on b and subscribes them, in file
// order.
func (c *Config) Apply(b *bus.Bus) error {
	version := msg.HeaderVersion(c.Mission.HeaderVersion)
	for _, s := range c.Subscriptions {
		pipeID, err := b.CreatePipe(s.Pipe, s.Depth)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		for _, ref := range s.Messages {
			id, err := ref.Resolve(version)
			if err != nil {
				return fmt.Errorf("config: pipe %s: %w", s.Pipe, err)
			}
			if err := b.Subscribe(id, pipeID); err != nil {
				return fmt.Errorf("config: %w", err)
			}
		}
	}
	return nil
}
