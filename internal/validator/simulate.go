package validator

import (
	"context"
	"strings"
	"time"

	"github.com/sol1corejz/ecoglass/internal/models"
)

var simulatedItems = [][]string{
	{"glass bottles"},
	{"glass jars"},
	{"glass bottles", "containers"},
	{"glass containers", "bottles"},
	{"beer bottles", "jars"},
}

var simulatedRejections = []string{
	"No recyclable glass was detected in the image.",
	"The image does not clearly show glass objects.",
	"Other materials were detected, but no glass.",
}

// simulate waits SimulatedDelay and returns a random verdict, valid about
// 70% of the time. The result always carries RequiresAPIKey. A cancelled ctx
// yields a rejection instead of a verdict.
func (v *Validator) simulate(ctx context.Context) models.ValidationResult {
	if v.cfg.SimulatedDelay > 0 {
		t := time.NewTimer(v.cfg.SimulatedDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	if ctx.Err() != nil {
		return models.ValidationResult{
			IsValid:        false,
			Confidence:     0,
			DetectedItems:  []string{},
			Message:        cancelledMessage,
			RequiresAPIKey: true,
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.rng.Float64() > 0.3 {
		items := simulatedItems[v.rng.IntN(len(simulatedItems))]
		return models.ValidationResult{
			IsValid:        true,
			Confidence:     70 + v.rng.IntN(30),
			DetectedItems:  append([]string(nil), items...),
			Message:        "Detected " + strings.Join(items, ", ") + " in the image.",
			RequiresAPIKey: true,
		}
	}

	return models.ValidationResult{
		IsValid:        false,
		Confidence:     30 + v.rng.IntN(40),
		DetectedItems:  []string{},
		Message:        simulatedRejections[v.rng.IntN(len(simulatedRejections))],
		RequiresAPIKey: true,
	}
}
