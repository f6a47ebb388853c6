package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the evacuation routing service configuration
type Config struct {
	Framework  FrameworkConfig  `yaml:"framework"`
	Tick       TickConfig       `yaml:"tick"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Hazard     HazardConfig     `yaml:"hazard"`
	Raster     RasterConfig     `yaml:"raster"`
	Graph      GraphConfig      `yaml:"graph"`
	Planner    PlannerConfig    `yaml:"planner"`
	Evacuation EvacuationConfig `yaml:"evacuation"`
	Reporting  ReportingConfig  `yaml:"reporting"`
	Emergency  EmergencyConfig  `yaml:"emergency"`
	Transport  TransportConfig  `yaml:"transport"`
}

// FrameworkConfig contains general framework settings
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// TickConfig contains tick orchestrator settings
type TickConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MessagingConfig contains agent mailbox settings
type MessagingConfig struct {
	MailboxCapacity int           `yaml:"mailbox_capacity"`
	SendTimeout     time.Duration `yaml:"send_timeout"`
	ReplyTimeout    time.Duration `yaml:"reply_timeout"`
}

// SchedulerConfig contains upstream refresh scheduler settings
type SchedulerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	UpstreamURL string        `yaml:"upstream_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HazardConfig contains fusion engine cache, decay and propagation settings
type HazardConfig struct {
	ScoutTTL           time.Duration `yaml:"scout_ttl"`
	FloodTTL           time.Duration `yaml:"flood_ttl"`
	KScoutFast         float64       `yaml:"k_scout_fast"`
	KScoutSlow         float64       `yaml:"k_scout_slow"`
	KOfficial          float64       `yaml:"k_official"`
	KSpatialEdge       float64       `yaml:"k_spatial_edge"`
	MinRiskFloor       float64       `yaml:"min_risk_floor"`
	RasterWeight       float64       `yaml:"raster_weight"`
	ScoutWeight        float64       `yaml:"scout_weight"`
	OfficialWeight     float64       `yaml:"official_weight"`
	PropagationRadiusM float64       `yaml:"scout_propagation_radius_m"`
}

// RasterConfig contains flood-depth raster settings. The center/coverage
// values are the manual geo-alignment; embedded CRS metadata is never read.
type RasterConfig struct {
	Root            string  `yaml:"root"`
	CenterLat       float64 `yaml:"center_lat"`
	CenterLon       float64 `yaml:"center_lon"`
	BaseCoverageDeg float64 `yaml:"base_coverage_deg"`
	CacheSize       int     `yaml:"cache_size"`
	Enabled         bool    `yaml:"enabled"`
}

// GraphConfig contains road network settings
type GraphConfig struct {
	Source         string  `yaml:"source"`
	SpatialGridDeg float64 `yaml:"spatial_grid_deg"`
}

// PlannerConfig contains path planner settings
type PlannerConfig struct {
	DefaultProfile         string  `yaml:"default_profile"`
	MaxSnapM               float64 `yaml:"max_snap_m"`
	ImpassabilityThreshold float64 `yaml:"impassability_threshold"`
}

// EvacuationConfig contains evacuation target selection settings
type EvacuationConfig struct {
	Roster     string `yaml:"roster"`
	Candidates int    `yaml:"candidates"`
}

// ReportingConfig contains reporting and output settings
type ReportingConfig struct {
	OutputDir string   `yaml:"output_dir"`
	KeepLastN int      `yaml:"keep_last_n"`
	Formats   []string `yaml:"formats"`
}

// EmergencyConfig contains emergency stop settings
type EmergencyConfig struct {
	StopFile string `yaml:"stop_file"`
}

// TransportConfig contains HTTP/WebSocket listener settings
type TransportConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Tick: TickConfig{
			Interval: 1 * time.Second,
		},
		Messaging: MessagingConfig{
			MailboxCapacity: 1024,
			SendTimeout:     100 * time.Millisecond,
			ReplyTimeout:    10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Interval: 300 * time.Second,
			Timeout:  30 * time.Second,
		},
		Hazard: HazardConfig{
			ScoutTTL:           45 * time.Minute,
			FloodTTL:           90 * time.Minute,
			KScoutFast:         0.10,
			KScoutSlow:         0.03,
			KOfficial:          0.05,
			KSpatialEdge:       0.08,
			MinRiskFloor:       0.01,
			RasterWeight:       0.5,
			ScoutWeight:        0.3,
			OfficialWeight:     0.2,
			PropagationRadiusM: 800,
		},
		Raster: RasterConfig{
			Root:            "./data/rasters",
			CenterLat:       0,
			CenterLon:       0,
			BaseCoverageDeg: 0.06,
			CacheSize:       32,
			Enabled:         false,
		},
		Graph: GraphConfig{
			Source:         "./data/network.yaml",
			SpatialGridDeg: 0.01,
		},
		Planner: PlannerConfig{
			DefaultProfile:         "balanced",
			MaxSnapM:               500,
			ImpassabilityThreshold: 0.9,
		},
		Evacuation: EvacuationConfig{
			Roster:     "./data/shelters.csv",
			Candidates: 5,
		},
		Reporting: ReportingConfig{
			OutputDir: "./reports",
			KeepLastN: 50,
			Formats:   []string{"json", "html"},
		},
		Emergency: EmergencyConfig{
			StopFile: "/tmp/evac-runner-stop",
		},
		Transport: TransportConfig{
			ListenAddr: ":8080",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// If no path provided, look for config.yaml in current directory
	if path == "" {
		path = "config.yaml"
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Return default config if file doesn't exist
		return cfg, nil
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Check if HAZARD_UPSTREAM_URL environment variable is set
	upstreamEnvSet := os.Getenv("HAZARD_UPSTREAM_URL") != ""
	upstreamEnv := os.Getenv("HAZARD_UPSTREAM_URL")

	// Expand environment variables in the YAML content
	expandedData := []byte(os.ExpandEnv(string(data)))

	// Parse YAML
	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply HAZARD_UPSTREAM_URL env var if set (takes priority over config file)
	if upstreamEnvSet {
		cfg.Scheduler.UpstreamURL = upstreamEnv
	}

	return cfg, nil
}

// Save writes configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Tick.Interval <= 0 {
		return fmt.Errorf("tick.interval must be positive")
	}

	if c.Messaging.MailboxCapacity < 1 {
		return fmt.Errorf("messaging.mailbox_capacity must be at least 1")
	}

	if c.Graph.Source == "" {
		return fmt.Errorf("graph.source is required")
	}

	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}

	if c.Hazard.ScoutTTL <= 0 || c.Hazard.FloodTTL <= 0 {
		return fmt.Errorf("hazard TTLs must be positive")
	}

	if c.Hazard.MinRiskFloor < 0 || c.Hazard.MinRiskFloor > 1 {
		return fmt.Errorf("hazard.min_risk_floor must be in [0,1]")
	}

	if c.Planner.ImpassabilityThreshold <= 0 || c.Planner.ImpassabilityThreshold > 1 {
		return fmt.Errorf("planner.impassability_threshold must be in (0,1]")
	}

	if c.Raster.BaseCoverageDeg <= 0 {
		return fmt.Errorf("raster.base_coverage_deg must be positive")
	}

	if c.Evacuation.Candidates < 1 {
		return fmt.Errorf("evacuation.candidates must be at least 1")
	}

	return nil
}
