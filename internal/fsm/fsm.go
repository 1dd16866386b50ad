// Package fsm defines application modes and the legal transitions between them.
package fsm

import (
	"fmt"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
)

// Kind is the discriminant of a Mode.
type Kind string

const (
	KindWelcome      Kind = "welcome"
	KindConversation Kind = "conversation"
	KindRecording    Kind = "recording"
	KindProcessing   Kind = "processing"
	KindHistory      Kind = "history"
	KindSettings     Kind = "settings"
	KindError        Kind = "error"
)

// Mode is the sealed sum of application modes. Payload-carrying modes are
// distinct types so Recording always has a speaker and Error always a reason.
type Mode interface {
	Kind() Kind
	isMode()
}

type Welcome struct{}

type Conversation struct{}

type Recording struct {
	Speaker domain.Speaker
}

// Processing covers an in-flight turn (Speaker set) and the end-session
// finishing screen (Finishing set).
type Processing struct {
	Speaker   domain.Speaker
	Finishing bool
}

type History struct{}

type Settings struct{}

type Error struct {
	Reason string
}

func (Welcome) Kind() Kind      { return KindWelcome }
func (Conversation) Kind() Kind { return KindConversation }
func (Recording) Kind() Kind    { return KindRecording }
func (Processing) Kind() Kind   { return KindProcessing }
func (History) Kind() Kind      { return KindHistory }
func (Settings) Kind() Kind     { return KindSettings }
func (Error) Kind() Kind        { return KindError }

func (Welcome) isMode()      {}
func (Conversation) isMode() {}
func (Recording) isMode()    {}
func (Processing) isMode()   {}
func (History) isMode()      {}
func (Settings) isMode()     {}
func (Error) isMode()        {}

// Event is the sealed sum of inputs to Transition.
type Event interface {
	Name() string
	isEvent()
}

// StartSession requests Welcome -> Conversation.
type StartSession struct{}

// Talk selects a speaker to record.
type Talk struct {
	Speaker domain.Speaker
}

// CaptureDone hands the finished capture to processing.
type CaptureDone struct{}

// TurnSucceeded returns from processing to the conversation.
type TurnSucceeded struct{}

// Fail routes any hard failure to error mode.
type Fail struct {
	Reason string
}

// Abandon discards an in-flight recording or turn.
type Abandon struct{}

// Navigate requests a free navigation target.
type Navigate struct {
	Target Kind
}

// EndSession starts the finishing screen.
type EndSession struct{}

// Finished lands the finishing screen on history.
type Finished struct{}

// Reset leaves error mode for welcome.
type Reset struct{}

func (StartSession) Name() string  { return "start_session" }
func (Talk) Name() string          { return "talk" }
func (CaptureDone) Name() string   { return "capture_done" }
func (TurnSucceeded) Name() string { return "turn_succeeded" }
func (Fail) Name() string          { return "fail" }
func (Abandon) Name() string       { return "abandon" }
func (Navigate) Name() string      { return "navigate" }
func (EndSession) Name() string    { return "end_session" }
func (Finished) Name() string      { return "finished" }
func (Reset) Name() string         { return "reset" }

func (StartSession) isEvent()  {}
func (Talk) isEvent()          {}
func (CaptureDone) isEvent()   {}
func (TurnSucceeded) isEvent() {}
func (Fail) isEvent()          {}
func (Abandon) isEvent()       {}
func (Navigate) isEvent()      {}
func (EndSession) isEvent()    {}
func (Finished) isEvent()      {}
func (Reset) isEvent()         {}

// Guard carries the facts outside the mode that transitions depend on.
type Guard struct {
	HasSession bool
}

// Transition returns the next mode for event, or the current mode and an
// error when the event is not legal here.
func Transition(current Mode, event Event, guard Guard) (Mode, error) {
	if f, ok := event.(Fail); ok {
		return Error{Reason: f.Reason}, nil
	}

	switch m := current.(type) {
	case Welcome:
		switch e := event.(type) {
		case StartSession:
			return Conversation{}, nil
		case Navigate:
			return navigate(current, e.Target, guard)
		}
	case Conversation:
		switch e := event.(type) {
		case Talk:
			if !guard.HasSession {
				return current, fault.New(fault.KindNoActiveSession, "cannot record without a session")
			}
			if !e.Speaker.Valid() {
				return current, fmt.Errorf("talk: unknown speaker %q", e.Speaker)
			}
			return Recording{Speaker: e.Speaker}, nil
		case EndSession:
			if !guard.HasSession {
				return current, fault.New(fault.KindNoActiveSession, "no session to end")
			}
			return Processing{Finishing: true}, nil
		case Navigate:
			return navigate(current, e.Target, guard)
		}
	case Recording:
		switch event.(type) {
		case CaptureDone:
			return Processing{Speaker: m.Speaker}, nil
		case Abandon:
			return Conversation{}, nil
		case Talk:
			return current, fault.New(fault.KindConcurrentTurn, "%s is already recording", m.Speaker)
		case Navigate, EndSession:
			return current, fault.New(fault.KindBusy, "recording in progress")
		}
	case Processing:
		if m.Finishing {
			switch event.(type) {
			case Finished:
				return History{}, nil
			case Navigate, Talk, EndSession:
				return current, fault.New(fault.KindBusy, "session is finishing")
			}
			break
		}
		switch event.(type) {
		case TurnSucceeded, Abandon:
			return Conversation{}, nil
		case Talk:
			return current, fault.New(fault.KindConcurrentTurn, "turn for %s is still processing", m.Speaker)
		case Navigate, EndSession:
			return current, fault.New(fault.KindBusy, "turn in progress")
		}
	case History, Settings:
		switch e := event.(type) {
		case Navigate:
			return navigate(current, e.Target, guard)
		}
	case Error:
		switch event.(type) {
		case Reset:
			return Welcome{}, nil
		}
	case nil:
		return current, fmt.Errorf("unknown mode <nil>")
	default:
		return current, fmt.Errorf("unknown mode %T", current)
	}

	return current, invalidTransition(current, event)
}

// navigate resolves free navigation among welcome, conversation, history,
// and settings. Conversation is only reachable with an open session.
func navigate(current Mode, target Kind, guard Guard) (Mode, error) {
	switch target {
	case KindWelcome:
		return Welcome{}, nil
	case KindHistory:
		return History{}, nil
	case KindSettings:
		return Settings{}, nil
	case KindConversation:
		if !guard.HasSession {
			return current, fault.New(fault.KindNoActiveSession, "no open session to return to")
		}
		return Conversation{}, nil
	default:
		return current, fmt.Errorf("cannot navigate to %q", target)
	}
}

func invalidTransition(mode Mode, event Event) error {
	return &fault.Error{
		Kind:   fault.KindInvalidTransition,
		Detail: fmt.Sprintf("%s --(%s)--> ?", mode.Kind(), event.Name()),
	}
}

// Describe renders a mode with its payload for status output.
func Describe(mode Mode) string {
	switch m := mode.(type) {
	case Recording:
		return fmt.Sprintf("recording(%s)", m.Speaker)
	case Processing:
		if m.Finishing {
			return "processing(finishing)"
		}
		return fmt.Sprintf("processing(%s)", m.Speaker)
	case Error:
		return fmt.Sprintf("error(%s)", m.Reason)
	case nil:
		return "<nil>"
	default:
		return string(mode.Kind())
	}
}
