package naver

import (
	"time"

	"land-crawler/config"
)

// StopReason says why a scroll loop ended.
type StopReason string

const (
	StopNoProgress StopReason = "no-progress"
	StopMaxSteps   StopReason = "max-steps"
)

// TerminationPolicy decides when scrolling stops and how long each step settles.
type TerminationPolicy struct {
	threshold    int
	maxSteps     int
	fastSettle   time.Duration
	slowSettle   time.Duration
	recentWindow time.Duration

	steps      int
	noProgress int
}

func NewTerminationPolicy(cfg *config.Config) *TerminationPolicy {
	p := &TerminationPolicy{
		threshold:    cfg.NoProgressThreshold,
		maxSteps:     cfg.MaxScrollSteps,
		fastSettle:   cfg.SettleFast,
		slowSettle:   cfg.SettleSlow,
		recentWindow: cfg.RecentResponseWindow,
	}
	if p.threshold <= 0 {
		p.threshold = 3
	}
	if p.maxSteps <= 0 {
		p.maxSteps = 100
	}
	return p
}

// Observe records one step. A step with movement or new items resets the no-progress count.
func (p *TerminationPolicy) Observe(moved bool, newItems int) (bool, StopReason) {
	p.steps++
	if moved || newItems > 0 {
		p.noProgress = 0
	} else {
		p.noProgress++
	}

	switch {
	case p.noProgress >= p.threshold:
		return true, StopNoProgress
	case p.steps >= p.maxSteps:
		return true, StopMaxSteps
	}
	return false, ""
}

// SettleDelay is short when a matching response arrived within the recent window.
func (p *TerminationPolicy) SettleDelay(lastArrival time.Time, seen bool, now time.Time) time.Duration {
	if seen && now.Sub(lastArrival) <= p.recentWindow {
		return p.fastSettle
	}
	return p.slowSettle
}

// Steps returns how many scroll steps have been observed.
func (p *TerminationPolicy) Steps() int { return p.steps }

// ConsecutiveNoProgress returns the current run of steps that neither moved nor added items.
func (p *TerminationPolicy) ConsecutiveNoProgress() int { return p.noProgress }
