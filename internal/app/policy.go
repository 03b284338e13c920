package app

import (
	"fmt"

	"github.com/dkeye/Roulette/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	KickEndpoint
)

// Policy decides what happens to an endpoint whose outbound queue is full.
type Policy interface {
	OnBackPressure(id domain.EndpointID) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(domain.EndpointID) BackpressureAction {
	return p.Action
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{Action: KickEndpoint}, nil
	case "drop":
		return SimplePolicy{Action: DropMessage}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
