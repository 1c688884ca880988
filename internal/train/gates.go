package train

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// GateViolation records one metric that fell short of its configured
// minimum.
type GateViolation struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

func (v GateViolation) String() string {
	return fmt.Sprintf("%s: %.4f < %.2f", v.Metric, v.Value, v.Threshold)
}

// GateResult aggregates every violated gate from one check, so a single
// failing run reports all of its shortfalls at once instead of stopping
// at the first.
type GateResult struct {
	Violations []GateViolation `json:"violations"`
}

// Passed reports whether every checked gate was satisfied.
func (r GateResult) Passed() bool {
	return len(r.Violations) == 0
}

// Err converts a failed result into a single descriptive error for the
// pipeline driver. It returns nil when all gates passed.
func (r GateResult) Err() error {
	if r.Passed() {
		return nil
	}
	return &GateError{Result: r}
}

// GateError is the error form of a failed gate check. Callers can pick
// it out with errors.As to tell a rejected model apart from a pipeline
// fault.
type GateError struct {
	Result GateResult
}

func (e *GateError) Error() string {
	parts := make([]string, len(e.Result.Violations))
	for i, v := range e.Result.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("quality gates failed: %s", strings.Join(parts, ", "))
}

// CheckGates compares each configured min_<metric> threshold against the
// evaluated metrics. Gate keys that name no known metric are skipped with
// a warning rather than treated as failures.
func CheckGates(m Metrics, gates map[string]float64) GateResult {
	var result GateResult

	for gate, threshold := range gates {
		metricName := strings.TrimPrefix(gate, "min_")
		value, ok := m.Value(metricName)
		if !ok {
			log.Warn().Str("gate", gate).Msg("gate references unknown metric, skipping")
			continue
		}
		if value < threshold {
			result.Violations = append(result.Violations, GateViolation{
				Metric:    metricName,
				Value:     value,
				Threshold: threshold,
			})
			log.Warn().Str("metric", metricName).Float64("value", value).Float64("threshold", threshold).Msg("quality gate violated")
		} else {
			log.Info().Str("metric", metricName).Float64("value", value).Float64("threshold", threshold).Msg("quality gate satisfied")
		}
	}

	sortViolations(result.Violations)
	return result
}

func sortViolations(v []GateViolation) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1].Metric > v[j].Metric; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}
