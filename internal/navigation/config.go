package navigation

// Config carries the gate definition and the tracking thresholds. Zero
// thresholds take the defaults below.
type Config struct {
	Gate                  Gate    `yaml:"gate" validate:"required"`
	GateProximityMeters   float64 `yaml:"gate_proximity_meters" validate:"gte=0"`
	DestinationSnapMeters float64 `yaml:"destination_snap_meters" validate:"gte=0"`
	DriftThresholdMeters  float64 `yaml:"drift_threshold_meters" validate:"gte=0"`
	StaleFixSeconds       float64 `yaml:"stale_fix_seconds" validate:"gte=0"`
	DivergenceDegrees     float64 `yaml:"divergence_degrees" validate:"gte=0,lte=180"`
	RecomputeTimeoutMS    int     `yaml:"recompute_timeout_ms" validate:"gte=0"`
}

const (
	defaultGateProximityMeters   = 50
	defaultDestinationSnapMeters = 2
	defaultDriftThresholdMeters  = 30
	defaultStaleFixSeconds       = 30
	defaultDivergenceDegrees     = 90
	defaultRecomputeTimeoutMS    = 15000
)

func (c *Config) applyDefaults() {
	if c.GateProximityMeters == 0 {
		c.GateProximityMeters = defaultGateProximityMeters
	}
	if c.DestinationSnapMeters == 0 {
		c.DestinationSnapMeters = defaultDestinationSnapMeters
	}
	if c.DriftThresholdMeters == 0 {
		c.DriftThresholdMeters = defaultDriftThresholdMeters
	}
	if c.StaleFixSeconds == 0 {
		c.StaleFixSeconds = defaultStaleFixSeconds
	}
	if c.DivergenceDegrees == 0 {
		c.DivergenceDegrees = defaultDivergenceDegrees
	}
	if c.RecomputeTimeoutMS == 0 {
		c.RecomputeTimeoutMS = defaultRecomputeTimeoutMS
	}
}
