package ipmi

import (
	"context"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

// Chassis groups the chassis commands.
type Chassis struct {
	conn *Conn
}

// Chassis returns the chassis commands of c's target.
func (c *Conn) Chassis() *Chassis { return &Chassis{conn: c} }

// Status returns the Get Chassis Status response.
func (ch *Chassis) Status(ctx context.Context) (*msg.GetChassisStatusRsp, error) {
	rsp := &msg.GetChassisStatusRsp{}
	if err := ch.conn.Send(ctx, &msg.GetChassisStatusReq{}, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

// Control sends a chassis control operation such as msg.ChassisPowerUp.
func (ch *Chassis) Control(ctx context.Context, op uint8) error {
	return ch.conn.Send(ctx, &msg.ChassisControlReq{Control: op}, &msg.ChassisControlRsp{})
}

func (ch *Chassis) PowerOn(ctx context.Context) error    { return ch.Control(ctx, msg.ChassisPowerUp) }
func (ch *Chassis) PowerOff(ctx context.Context) error   { return ch.Control(ctx, msg.ChassisPowerDown) }
func (ch *Chassis) PowerCycle(ctx context.Context) error { return ch.Control(ctx, msg.ChassisPowerCycle) }
func (ch *Chassis) HardReset(ctx context.Context) error  { return ch.Control(ctx, msg.ChassisHardReset) }

// ParseControl maps the names used by the CLI and the HTTP API to chassis
// control operations.
func ParseControl(name string) (uint8, bool) {
	switch name {
	case "on", "up":
		return msg.ChassisPowerUp, true
	case "off", "down":
		return msg.ChassisPowerDown, true
	case "cycle":
		return msg.ChassisPowerCycle, true
	case "reset":
		return msg.ChassisHardReset, true
	case "diag":
		return msg.ChassisDiagnosticInterrupt, true
	case "soft":
		return msg.ChassisSoftShutdown, true
	}
	return 0, false
}
