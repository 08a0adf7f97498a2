/*
Package hw models the external interfaces of spec.md §6 as Go interfaces —
train controller I/O, switch I/O, and the static track loader — so the
control pipeline never depends on a concrete byte-channel implementation.
It ships one concrete implementation, SimBus, an in-memory recorder/replayer
sufficient to drive the integration tests of spec.md §8; a real serial-port
backed implementation would satisfy the same interfaces without touching
any server.
*/
package hw

import (
	"fmt"
	"sync"

	"traindispatch/internal/hw/track"
)

// TrainBus is the train controller I/O contract: go/stop/set_speed/reverse.
type TrainBus interface {
	Go() error
	Stop() error
	SetSpeed(train, speed int) error
	Reverse(train int) error
}

// SwitchBus is the switch I/O contract: commanded direction per switch
// number, followed by a solenoid-disable within a bounded time.
type SwitchBus interface {
	SetDirection(sw int, dir track.Direction) error
}

// ErrSpeedOutOfRange and ErrSwitchOutOfRange are invariant-violation
// sentinels per spec.md §7: speed outside 0..14 or an unknown switch number
// indicates a programming mistake, not a transient condition.
var (
	ErrSpeedOutOfRange  = fmt.Errorf("hw: speed out of range 0..14")
	ErrTrainOutOfRange  = fmt.Errorf("hw: train id out of range 1..80")
	ErrSwitchOutOfRange = fmt.Errorf("hw: switch number out of range")
)

const (
	MaxTrainID = 80
	MaxSpeed   = 14
)

// validSwitch reports whether sw is one of the addressable switch numbers:
// 1..18 or 153..156, per spec.md §6.
func validSwitch(sw int) bool {
	return (sw >= 1 && sw <= 18) || (sw >= 153 && sw <= 156)
}

// SimBus is an in-memory TrainBus+SwitchBus: it records every command and
// exposes the state built up so far, for tests. It never touches real
// hardware.
type SimBus struct {
	mu       sync.Mutex
	running  bool
	speeds   map[int]int
	switches *SwitchState
	log      []string
}

// NewSimBus returns a SimBus backed by the given shared switch state.
func NewSimBus(switches *SwitchState) *SimBus {
	return &SimBus{speeds: make(map[int]int), switches: switches}
}

func (b *SimBus) Go() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
	b.log = append(b.log, "go")
	return nil
}

func (b *SimBus) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	for t := range b.speeds {
		b.speeds[t] = 0
	}
	b.log = append(b.log, "stop")
	return nil
}

func (b *SimBus) SetSpeed(train, speed int) error {
	if train < 1 || train > MaxTrainID {
		return ErrTrainOutOfRange
	}
	if speed < 0 || speed > MaxSpeed {
		return ErrSpeedOutOfRange
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speeds[train] = speed
	b.log = append(b.log, fmt.Sprintf("set_speed(%d,%d)", train, speed))
	return nil
}

func (b *SimBus) Reverse(train int) error {
	if train < 1 || train > MaxTrainID {
		return ErrTrainOutOfRange
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, fmt.Sprintf("reverse(%d)", train))
	return nil
}

func (b *SimBus) SetDirection(sw int, dir track.Direction) error {
	if !validSwitch(sw) {
		return ErrSwitchOutOfRange
	}
	b.switches.Set(sw, dir)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, fmt.Sprintf("switch(%d,%v)", sw, dir))
	return nil
}

// SpeedOf returns the last commanded speed for train, for tests.
func (b *SimBus) SpeedOf(train int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speeds[train]
}

// Log returns a copy of the command history, oldest first, for tests.
func (b *SimBus) Log() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.log))
	copy(out, b.log)
	return out
}
