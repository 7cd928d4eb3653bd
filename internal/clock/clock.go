package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts wall time so rate staleness can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// New returns the system clock in UTC.
func New() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

var Module = fx.Module("clock",
	fx.Provide(New),
)
