package basin

import (
	"github.com/grovetools/basin/pkg/channel"
)

type reserved uint8

const (
	notReserved reserved = iota
	reservedReady
	reservedAll
	reservedDefault
	reservedSettled
)

// Name identifies an event on the engine bus. Engine-owned names cannot be
// produced from user strings, so a channel called "ready" never collides with
// Ready.
type Name struct {
	reserved reserved
	user     string
}

var (
	// Ready fires once, with no arguments, when the initial scan has settled.
	Ready = Name{reserved: reservedReady}
	// All receives every change, whatever channels it matched.
	All = Name{reserved: reservedAll}
	// Default is the channel used when no channels are configured.
	Default = Name{reserved: reservedDefault}
	// Settled fires once, after Ready, when every change from the initial
	// scan has been dispatched and its handlers have returned.
	Settled = Name{reserved: reservedSettled}
)

// Event names a user channel or a custom pipeline event.
func Event(name string) Name {
	return Name{user: name}
}

// Reserved reports whether n is an engine-owned name.
func (n Name) Reserved() bool {
	return n.reserved != notReserved
}

func (n Name) String() string {
	switch n.reserved {
	case reservedReady:
		return "@ready"
	case reservedAll:
		return "@all"
	case reservedDefault:
		return channel.DefaultName
	case reservedSettled:
		return "@settled"
	default:
		return n.user
	}
}

// channelEvent maps a registered channel to its bus name.
func channelEvent(name string) Name {
	if name == channel.DefaultName {
		return Default
	}
	return Event(name)
}

// ParseName is the inverse of Name.String.
func ParseName(s string) Name {
	switch s {
	case Ready.String():
		return Ready
	case All.String():
		return All
	case Default.String():
		return Default
	case Settled.String():
		return Settled
	default:
		return Event(s)
	}
}
