package engine

import "time"

// Event is one log line emitted by a session, in order.
type Event struct {
	SessionID string    `json:"session_id"`
	PlayerID  string    `json:"player_id"`
	Round     int       `json:"round"`
	State     State     `json:"state"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Sink receives combat events. Emit must not call back into the engine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Sinks fans an event out to several sinks in order.
type Sinks []Sink

func (s Sinks) Emit(ev Event) {
	for _, k := range s {
		if k != nil {
			k.Emit(ev)
		}
	}
}
