package constants

import "time"

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // 3 consecutive failures open the circuit
	ResetTimeout:        30 * time.Second, // default wait before retrying
	RateLimitTimeout:    10 * time.Minute, // dedicated timeout for 429 responses
	HealthCheckInterval: 2 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var AIInputLimits = struct {
	MaxContentLength   int
	MaxImageBytes      int
	MaxResponseLength  int
	MaxUploadBytes     int64
	MaxTranslateLength int
}{
	MaxContentLength:   8000,
	MaxImageBytes:      8 << 20,
	MaxResponseLength:  280,
	MaxUploadBytes:     10 << 20,
	MaxTranslateLength: 4000,
}

var AcquisitionConfig = struct {
	MinContentLength  int
	HintMinSegmentLen int
	ProbeTimeout      time.Duration
	ProbeMaxBytes     int64
	UserAgent         string
	NotFoundSentinel  string
}{
	MinContentLength:  10,
	HintMinSegmentLen: 10,
	ProbeTimeout:      6 * time.Second,
	ProbeMaxBytes:     2 << 20,
	UserAgent:         "Mozilla/5.0 (compatible; CampaignOpsScout/1.0)",
	NotFoundSentinel:  "CONTENIDO_NO_ENCONTRADO",
}

var SimulatorConfig = struct {
	StartProgress    float64
	ProgressCeiling  float64
	MaxIncrement     float64
	ProgressTick     time.Duration
	LogCadence       time.Duration
	ResetDelay       time.Duration
	FillerChance     float64
	ResearchSpliceAt int
}{
	StartProgress:    10,
	ProgressCeiling:  90,
	MaxIncrement:     5,
	ProgressTick:     500 * time.Millisecond,
	LogCadence:       2500 * time.Millisecond,
	ResetDelay:       time.Second,
	FillerChance:     0.35,
	ResearchSpliceAt: 2,
}

var SessionLimits = struct {
	MaxLogLines       int
	SweepInterval     time.Duration
	SnapshotBuffer    int
	WebSocketPing     time.Duration
	WebSocketWriteTTL time.Duration
}{
	MaxLogLines:       200,
	SweepInterval:     5 * time.Minute,
	SnapshotBuffer:    16,
	WebSocketPing:     30 * time.Second,
	WebSocketWriteTTL: 10 * time.Second,
}

var CacheTTL = struct {
	ScoutResult time.Duration
}{
	ScoutResult: 30 * time.Minute,
}
