// Package timing holds time intervals and the timed footsteps built on them.
package timing

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidInterval = errors.New("interval ends before it starts")

// TimeInterval is a closed [Start, End] range in seconds.
type TimeInterval struct {
	Start float64 `json:"start" toml:"start"`
	End   float64 `json:"end"   toml:"end"`
}

// NewTimeInterval returns the interval [start, end].
func NewTimeInterval(start, end float64) (TimeInterval, error) {
	ti := TimeInterval{Start: start, End: end}
	return ti, ti.Validate()
}

func (ti TimeInterval) Validate() error {
	if ti.End < ti.Start {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidInterval, ti.Start, ti.End)
	}
	return nil
}

func (ti TimeInterval) Duration() float64 {
	return ti.End - ti.Start
}

// Contains reports whether t lies inside the interval, bounds included.
func (ti TimeInterval) Contains(t float64) bool {
	return t >= ti.Start && t <= ti.End
}

// Shift returns the interval moved by dt.
func (ti TimeInterval) Shift(dt float64) TimeInterval {
	return TimeInterval{Start: ti.Start + dt, End: ti.End + dt}
}

func (ti TimeInterval) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", ti.Start, ti.End)
}

// Timed is anything carrying a TimeInterval.
type Timed interface {
	GetTimeInterval() TimeInterval
}

func (ti TimeInterval) GetTimeInterval() TimeInterval {
	return ti
}

func byStart[T Timed](a, b T) int {
	return cmp.Compare(a.GetTimeInterval().Start, b.GetTimeInterval().Start)
}

func byEnd[T Timed](a, b T) int {
	return cmp.Compare(a.GetTimeInterval().End, b.GetTimeInterval().End)
}

// SortByStartTime sorts in place by ascending start time. Ties keep their
// original order.
func SortByStartTime[T Timed](items []T) {
	slices.SortStableFunc(items, byStart[T])
}

// SortByReverseStartTime sorts in place by descending start time.
func SortByReverseStartTime[T Timed](items []T) {
	slices.SortStableFunc(items, func(a, b T) int { return byStart(b, a) })
}

// SortByEndTime sorts in place by ascending end time.
func SortByEndTime[T Timed](items []T) {
	slices.SortStableFunc(items, byEnd[T])
}

// SortByReverseEndTime sorts in place by descending end time.
func SortByReverseEndTime[T Timed](items []T) {
	slices.SortStableFunc(items, func(a, b T) int { return byEnd(b, a) })
}

// RemoveAllEndingAfter drops every item whose end is after t.
func RemoveAllEndingAfter[T Timed](items []T, t float64) []T {
	return slices.DeleteFunc(items, func(item T) bool { return item.GetTimeInterval().End > t })
}

// RemoveAllStartingAfter drops every item whose start is after t.
func RemoveAllStartingAfter[T Timed](items []T, t float64) []T {
	return slices.DeleteFunc(items, func(item T) bool { return item.GetTimeInterval().Start > t })
}

// RemoveAllStartingBefore drops every item whose start is before t.
func RemoveAllStartingBefore[T Timed](items []T, t float64) []T {
	return slices.DeleteFunc(items, func(item T) bool { return item.GetTimeInterval().Start < t })
}

// RemoveAllEndingBefore drops every item whose end is before t.
func RemoveAllEndingBefore[T Timed](items []T, t float64) []T {
	return slices.DeleteFunc(items, func(item T) bool { return item.GetTimeInterval().End < t })
}
