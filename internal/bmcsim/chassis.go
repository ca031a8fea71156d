package bmcsim

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Chassis is the simulated power state of the managed system.
type Chassis struct {
	mu            sync.RWMutex
	on            bool
	powerOnByIPMI bool
	restore       uint8
	cycles        int
}

// NewChassis returns a chassis in the given power state.
func NewChassis(on bool) *Chassis {
	return &Chassis{on: on, restore: msg.PowerRestorePrevious}
}

// PowerOn reports the current power state.
func (c *Chassis) PowerOn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.on
}

// Cycles returns how many power cycles and hard resets were requested.
func (c *Chassis) Cycles() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cycles
}

// Control applies a chassis control operation.
func (c *Chassis) Control(op uint8) codec.CompletionCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch op {
	case msg.ChassisPowerDown, msg.ChassisSoftShutdown:
		c.on = false
	case msg.ChassisPowerUp:
		c.on = true
		c.powerOnByIPMI = true
	case msg.ChassisPowerCycle, msg.ChassisHardReset:
		if !c.on && op == msg.ChassisPowerCycle {
			return codec.CompletionCodeNotSupportedInState
		}
		c.on = true
		c.cycles++
	case msg.ChassisDiagnosticInterrupt:
		log.WithField("component", "bmcsim").Info("chassis diagnostic interrupt (no-op)")
	default:
		return codec.CompletionCodeInvalidField
	}
	return codec.CompletionCodeOK
}

func (c *Chassis) status() *msg.GetChassisStatusRsp {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &msg.GetChassisStatusRsp{
		Power: msg.PowerState{
			PowerOn:            c.on,
			PowerRestorePolicy: c.restore,
		},
		LastEvent: msg.LastPowerEvent{PowerOnByIPMI: c.powerOnByIPMI},
	}
}
