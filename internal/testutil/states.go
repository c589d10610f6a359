package testutil

import (
	"sync"

	"github.com/atlanticdynamic/modectl/internal/statemachine"
)

// Journal records lifecycle calls in order across several states.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Record(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// RecordingState is a statemachine.State that writes "enter:", "step:" and
// "exit:" entries to its Journal and returns Result/Err from Process.
type RecordingState struct {
	Name    string
	Journal *Journal

	Result statemachine.Event
	Err    error

	Entries int
	Steps   int
	Exits   int
}

var _ statemachine.State = (*RecordingState)(nil)

func NewRecordingState(name string, journal *Journal) *RecordingState {
	return &RecordingState{Name: name, Journal: journal}
}

func (s *RecordingState) OnEntry() {
	s.Entries++
	s.record("enter:")
}

func (s *RecordingState) Process() (statemachine.Event, error) {
	s.Steps++
	s.record("step:")
	return s.Result, s.Err
}

func (s *RecordingState) OnExit() {
	s.Exits++
	s.record("exit:")
}

func (s *RecordingState) record(prefix string) {
	if s.Journal != nil {
		s.Journal.Record(prefix + s.Name)
	}
}
