package session

import (
	"time"

	"screen-recorder/src/mux"
	"screen-recorder/src/screenshot"
)

// Result describes a finished recording.
type Result struct {
	ID           string
	Region       screenshot.Region
	Path         string
	RecoveryPath string
	Outcome      mux.Outcome
	Frames       int
	AudioChunks  int
	Active       time.Duration
	Warnings     []error
}

// FPS is the achieved rate over unpaused time.
func (r Result) FPS() float64 {
	if r.Active <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Active.Seconds()
}

// Target receives session progress. Calls arrive from session goroutines
// and must not block for long; a Target may call back into the Session.
type Target interface {
	OnState(State)
	OnCountdown(remaining int)
	OnStatus(text string)
	OnWarning(err error)
	OnFinished(res Result, err error)
}

// NopTarget ignores every notification. Embed it to implement a subset.
type NopTarget struct{}

func (NopTarget) OnState(State)            {}
func (NopTarget) OnCountdown(int)          {}
func (NopTarget) OnStatus(string)          {}
func (NopTarget) OnWarning(error)          {}
func (NopTarget) OnFinished(Result, error) {}
