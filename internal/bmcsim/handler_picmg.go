package bmcsim

import (
	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

const (
	picmgExtensionMajor = 2
	picmgExtensionMinor = 3
)

func (c *Controller) picmgProperties() (codec.Response, codec.CompletionCode) {
	if !c.PICMG {
		return nil, codec.CompletionCodeInvalidCommand
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var maxID uint8
	for id := range c.fru {
		if id > maxID {
			maxID = id
		}
	}
	return &msg.GetPICMGPropertiesRsp{
		PICMGIdentifier: msg.PICMGIdentifier,
		ExtensionMajor:  picmgExtensionMajor,
		ExtensionMinor:  picmgExtensionMinor,
		MaxFRUDeviceID:  maxID,
	}, codec.CompletionCodeOK
}

func (c *Controller) setActivationPolicy(r *msg.SetFRUActivationPolicyReq) (codec.Response, codec.CompletionCode) {
	if !c.PICMG {
		return nil, codec.CompletionCodeInvalidCommand
	}
	if r.PICMGIdentifier != msg.PICMGIdentifier {
		return nil, codec.CompletionCodeInvalidField
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fru[r.FRUID]; !ok {
		return nil, codec.CompletionCodeParameterOutOfRange
	}
	p := c.policies[r.FRUID]
	if r.Mask.ActivationLocked {
		p.ActivationLocked = r.Set.ActivationLocked
	}
	if r.Mask.DeactivationLocked {
		p.DeactivationLocked = r.Set.DeactivationLocked
	}
	c.policies[r.FRUID] = p
	return &msg.SetFRUActivationPolicyRsp{PICMGIdentifier: msg.PICMGIdentifier}, codec.CompletionCodeOK
}

func (c *Controller) activationPolicy(r *msg.GetFRUActivationPolicyReq) (codec.Response, codec.CompletionCode) {
	if !c.PICMG {
		return nil, codec.CompletionCodeInvalidCommand
	}
	if r.PICMGIdentifier != msg.PICMGIdentifier {
		return nil, codec.CompletionCodeInvalidField
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.fru[r.FRUID]; !ok {
		return nil, codec.CompletionCodeParameterOutOfRange
	}
	return &msg.GetFRUActivationPolicyRsp{
		PICMGIdentifier: msg.PICMGIdentifier,
		Policy:          c.policies[r.FRUID],
	}, codec.CompletionCodeOK
}
