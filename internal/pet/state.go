package pet

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName = "state.yaml"

	DefaultMood   = 0.8
	MinMood       = 0.1
	MaxMood       = 1.0
	ExchangeBoost = 0.1
	DecayPerHour  = 0.1
)

type Exchange struct {
	User     string `yaml:"user"`
	Response string `yaml:"response"`
}

// State is the persisted record. Mood stays within [MinMood, MaxMood].
type State struct {
	Name            string     `yaml:"name"`
	Mood            float64    `yaml:"mood"`
	LastInteraction time.Time  `yaml:"last_interaction"`
	DecayedHours    int        `yaml:"decayed_hours"` // hours already subtracted since LastInteraction
	ChatHistory     []Exchange `yaml:"chat_history"`
}

// PersistenceError wraps a failed load or save of the state record.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s state %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the only writer of State.
type Store struct {
	path  string
	state State
	now   func() time.Time
}

func NewState(name string, now time.Time) State {
	return State{Name: name, Mood: DefaultMood, LastInteraction: now.UTC()}
}

// Open loads the state record from dir. Missing or malformed data yields a
// default state; a malformed record is reported as a *PersistenceError, but the
// returned store is always usable.
func Open(dir, name string) (*Store, error) {
	s := &Store{path: filepath.Join(dir, FileName), now: time.Now}
	err := s.load(name)
	return s, err
}

// WithClock replaces the store's time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Path() string { return s.path }

func (s *Store) load(name string) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.state = NewState(name, s.now())
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		s.state = NewState(name, s.now())
		return &PersistenceError{Op: "load", Path: s.path, Err: fmt.Errorf("parse: %w", err)}
	}
	if st.LastInteraction.IsZero() {
		st.LastInteraction = s.now().UTC()
	}
	if math.IsNaN(st.Mood) {
		st.Mood = DefaultMood
	}
	st.Mood = clamp(st.Mood)
	if st.DecayedHours < 0 {
		st.DecayedHours = 0
	}
	if name != "" {
		st.Name = name
	}
	s.state = st
	return nil
}

// Snapshot returns a copy that is safe to read while the store keeps changing.
func (s *Store) Snapshot() State {
	st := s.state
	st.ChatHistory = append([]Exchange(nil), s.state.ChatHistory...)
	return st
}

func (s *Store) Mood() float64 { return s.state.Mood }

func (s *Store) Name() string { return s.state.Name }

func (s *Store) HistoryLen() int { return len(s.state.ChatHistory) }

func (s *Store) LastInteractionTime() time.Time { return s.state.LastInteraction }

// Decay lowers mood by DecayPerHour for every whole hour since the last
// interaction. Hours already applied are remembered, so calling Decay again
// with the same or an earlier time changes nothing.
func (s *Store) Decay(now time.Time) {
	hours := int(now.Sub(s.state.LastInteraction) / time.Hour)
	if hours <= s.state.DecayedHours {
		return
	}
	pending := hours - s.state.DecayedHours
	s.state.Mood = clamp(s.state.Mood - float64(pending)*DecayPerHour)
	s.state.DecayedHours = hours
}

// RecordExchange stores a completed exchange, applies boost and persists.
// The in-memory exchange is kept even when the write fails.
func (s *Store) RecordExchange(user, response string, boost float64) error {
	s.state.LastInteraction = s.now().UTC()
	s.state.DecayedHours = 0
	s.state.Mood = clamp(s.state.Mood + boost)
	s.state.ChatHistory = append(s.state.ChatHistory, Exchange{User: user, Response: response})
	return s.Save()
}

// Purge drops the chat history. Mood and name are untouched.
func (s *Store) Purge() error {
	s.state.ChatHistory = nil
	return s.Save()
}

// Save writes through a temp file so a failed write leaves the old record intact.
func (s *Store) Save() error {
	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".*")
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func clamp(m float64) float64 {
	return math.Max(MinMood, math.Min(MaxMood, m))
}
