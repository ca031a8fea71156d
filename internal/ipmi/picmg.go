package ipmi

import (
	"context"

	"github.com/tjst-t/go-ipmi/internal/msg"
)

// PICMG groups the PICMG group extension commands.
type PICMG struct {
	conn *Conn
}

// PICMG returns the PICMG commands of c's target.
func (c *Conn) PICMG() *PICMG { return &PICMG{conn: c} }

// Properties returns the PICMG extension version and FRU device ids.
func (p *PICMG) Properties(ctx context.Context) (*msg.GetPICMGPropertiesRsp, error) {
	rsp := &msg.GetPICMGPropertiesRsp{}
	if err := p.conn.Send(ctx, &msg.GetPICMGPropertiesReq{PICMGIdentifier: msg.PICMGIdentifier}, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

// ActivationPolicy returns the activation policy of FRU fru.
func (p *PICMG) ActivationPolicy(ctx context.Context, fru uint8) (msg.FRUActivationPolicy, error) {
	rsp := &msg.GetFRUActivationPolicyRsp{}
	req := &msg.GetFRUActivationPolicyReq{PICMGIdentifier: msg.PICMGIdentifier, FRUID: fru}
	if err := p.conn.Send(ctx, req, rsp); err != nil {
		return msg.FRUActivationPolicy{}, err
	}
	return rsp.Policy, nil
}

// SetActivationPolicy changes the policy bits selected by mask to the
// values in set.
func (p *PICMG) SetActivationPolicy(ctx context.Context, fru uint8, mask, set msg.FRUActivationPolicy) error {
	req := &msg.SetFRUActivationPolicyReq{
		PICMGIdentifier: msg.PICMGIdentifier,
		FRUID:           fru,
		Mask:            mask,
		Set:             set,
	}
	return p.conn.Send(ctx, req, &msg.SetFRUActivationPolicyRsp{})
}
