package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles of the console host.
// Flags are process-wide; there is no per-operator targeting.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
	now      func() time.Time
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// Predefined feature flag names.
const (
	// Recompute stats after every applied action and log drift.
	FeatureStatsAudit = "stats_audit"

	// Mirror the stats snapshot into Redis for external dashboards.
	FeatureRedisStatsCache = "redis_stats_cache"

	// Fan dispatch events out to other console instances over Redis Pub/Sub.
	FeatureRedisEventFanout = "redis_event_fanout"

	// Expose the intent endpoints and require them for destructive actions.
	FeatureTwoPhaseCommands = "two_phase_commands"

	// Reject actions against unknown targets and evaluate the command policy
	// on direct dispatch.
	FeatureStrictDispatch = "strict_dispatch"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	ff.loadFromEnvironment()
	return ff
}

// NewFeatureFlags returns the defaults without reading the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
		now:      time.Now,
	}
	ff.initializeDefaults()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	for _, f := range []Feature{
		{Name: FeatureStatsAudit, Description: "Log stats drift after every applied action", Enabled: true},
		{Name: FeatureRedisStatsCache, Description: "Publish stats snapshots to Redis", Enabled: false},
		{Name: FeatureRedisEventFanout, Description: "Fan dispatch events out over Redis Pub/Sub", Enabled: false},
		{Name: FeatureTwoPhaseCommands, Description: "Propose/confirm flow for destructive actions", Enabled: true},
		{Name: FeatureStrictDispatch, Description: "Policy checks and strict targets on direct dispatch", Enabled: false},
	} {
		ff.features[f.Name] = &f
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_REDIS_STATS_CACHE=true
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "redis_stats_cache" -> "FEATURE_REDIS_STATS_CACHE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled now.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	now := ff.now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}
	return true
}

// SetEnabled toggles a feature. Thread-safe for live updates.
func (ff *FeatureFlags) SetEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// SetWindow limits a feature to [from, until]. Nil bounds are open.
func (ff *FeatureFlags) SetWindow(featureName string, from, until *time.Time) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if from != nil && until != nil && until.Before(*from) {
		return ErrInvalidWindow
	}
	feature.EnabledFrom = from
	feature.EnabledUntil = until
	return nil
}

// EnableFeature enables a feature.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetEnabled(featureName, true)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetEnabled(featureName, false)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// EnabledNames returns the names of enabled features, sorted.
func (ff *FeatureFlags) EnabledNames() []string {
	ff.mu.RLock()
	names := make([]string, 0, len(ff.features))
	for name := range ff.features {
		names = append(names, name)
	}
	ff.mu.RUnlock()

	out := names[:0]
	for _, name := range names {
		if ff.IsEnabled(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// --- Errors ---

var (
	ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidWindow   = &FeatureFlagError{Message: "feature window ends before it starts"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
