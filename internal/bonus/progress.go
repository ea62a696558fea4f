// Package bonus implements the bonus bar: every confirmed upload fills it by
// Step percent and a full bar pays a level-dependent bonus, resets to zero
// and raises the level.
package bonus

import (
	"context"
	"fmt"

	"github.com/sol1corejz/ecoglass/internal/storage"
)

const (
	// Step is the progress added by one confirmed upload (5 uploads per bar).
	Step = 20
	// Full is the progress at which the bar completes.
	Full = 100

	baseReward     = 100
	rewardPerLevel = 50
)

// Progress is persisted under progress_{email}. Progress stays in [0, Full).
type Progress struct {
	Progress       int `json:"progress"`
	Level          int `json:"level"`
	TotalCompleted int `json:"totalCompleted"`
}

func Initial() Progress {
	return Progress{Progress: 0, Level: 1}
}

// RewardFor is the bonus paid when a bar is completed at level.
func RewardFor(level int) int {
	return baseReward + (level-1)*rewardPerLevel
}

// NextReward is the bonus the current bar will pay.
func (p Progress) NextReward() int {
	return RewardFor(p.Level)
}

// PhotosRemaining is the number of uploads still needed to fill the bar.
func (p Progress) PhotosRemaining() int {
	return (Full - p.Progress + Step - 1) / Step
}

// Outcome describes one Advance. Bonus is zero unless the bar completed.
type Outcome struct {
	Progress        Progress `json:"progress"`
	Completed       bool     `json:"completed"`
	Bonus           int      `json:"bonus"`
	PhotosRemaining int      `json:"photosRemaining"`
}

// Advance adds amount to the bar. Reaching Full pays RewardFor(level) at the
// level before the increment and drops any overflow.
func (p Progress) Advance(amount int) Outcome {
	next := p.Progress + amount

	if next >= Full {
		done := Progress{
			Progress:       0,
			Level:          p.Level + 1,
			TotalCompleted: p.TotalCompleted + 1,
		}
		return Outcome{
			Progress:        done,
			Completed:       true,
			Bonus:           RewardFor(p.Level),
			PhotosRemaining: done.PhotosRemaining(),
		}
	}

	p.Progress = next
	return Outcome{Progress: p, PhotosRemaining: p.PhotosRemaining()}
}

// Tracker persists bar state per account.
type Tracker struct {
	step int
}

func NewTracker() *Tracker {
	return &Tracker{step: Step}
}

// Load returns the stored progress, or the initial state for a new account.
func (t *Tracker) Load(ctx context.Context, kv storage.KV, email string) (Progress, error) {
	p := Initial()
	if _, err := kv.Get(ctx, storage.ProgressKey(email), &p); err != nil {
		return Progress{}, fmt.Errorf("load progress: %w", err)
	}
	if p.Level < 1 {
		p.Level = 1
	}
	return p, nil
}

// Increment advances the stored bar by one upload's worth.
func (t *Tracker) Increment(ctx context.Context, kv storage.KV, email string) (Outcome, error) {
	p, err := t.Load(ctx, kv, email)
	if err != nil {
		return Outcome{}, err
	}

	out := p.Advance(t.step)
	if err := kv.Put(ctx, storage.ProgressKey(email), out.Progress); err != nil {
		return Outcome{}, fmt.Errorf("save progress: %w", err)
	}
	return out, nil
}
