package bmcsim

import (
	"bytes"

	log "github.com/sirupsen/logrus"

	"github.com/tjst-t/go-ipmi/internal/codec"
	"github.com/tjst-t/go-ipmi/internal/msg"
)

func (s *Server) session(sess *Session, req codec.Message) (codec.Response, codec.CompletionCode) {
	switch r := req.(type) {
	case *msg.GetChannelAuthenticationCapabilitiesReq:
		return s.capabilities(r)
	case *msg.GetSessionChallengeReq:
		return s.challenge(r)
	case *msg.ActivateSessionReq:
		if sess == nil || sess.Active {
			return nil, ccInvalidSessionID
		}
		return s.activate(sess, r)
	case *msg.SetSessionPrivilegeLevelReq:
		if sess == nil {
			return nil, ccInvalidSessionID
		}
		return s.setPrivilege(sess, r)
	case *msg.CloseSessionReq:
		return s.closeSession(sess, r)
	case *msg.GetSessionInfoReq:
		return s.sessionInfo(sess, r)
	}
	return nil, codec.CompletionCodeInvalidCommand
}

func (s *Server) capabilities(r *msg.GetChannelAuthenticationCapabilitiesReq) (codec.Response, codec.CompletionCode) {
	ch := s.state.Channel()
	if r.Channel != msg.ChannelCurrent && r.Channel != ch.Number {
		return nil, codec.CompletionCodeInvalidField
	}
	_, _, null := s.state.LookupUser("")
	return &msg.GetChannelAuthenticationCapabilitiesRsp{
		ChannelNumber: ch.Number,
		Support:       ch.AuthTypes,
		Login: msg.LoginStatus{
			NullUsernames:          null,
			NonNullUsernames:       s.state.EnabledUsers() > 0,
			PerMessageAuthDisabled: !ch.PerMessageAuth,
		},
		SupportsIPMIv15: true,
	}, codec.CompletionCodeOK
}

func (s *Server) challenge(r *msg.GetSessionChallengeReq) (codec.Response, codec.CompletionCode) {
	if !s.state.Channel().AuthTypes.Supports(r.AuthType) {
		return nil, codec.CompletionCodeInvalidField
	}
	id, _, ok := s.state.LookupUser(r.Username)
	if !ok {
		if r.Username == "" {
			return nil, ccNullUserDisabled
		}
		return nil, ccInvalidUserName
	}
	tmp, err := s.sessions.Challenge(id, r.AuthType)
	if err != nil {
		s.logger.WithError(err).Warn("creating session")
		return nil, ccNoSessionSlot
	}
	return &msg.GetSessionChallengeRsp{
		TemporarySessionID: tmp.ID,
		Challenge:          tmp.Challenge,
	}, codec.CompletionCodeOK
}

func (s *Server) activate(tmp *Session, r *msg.ActivateSessionReq) (codec.Response, codec.CompletionCode) {
	if r.AuthType != tmp.AuthType || !bytes.Equal(r.Challenge, tmp.Challenge) {
		return nil, codec.CompletionCodeInvalidField
	}
	u, err := s.state.User(tmp.UserID)
	if err != nil {
		return nil, ccInvalidUserName
	}
	if r.Privilege > u.PrivilegeLimit || r.Privilege > s.state.Channel().PrivilegeLimit {
		return nil, ccPrivilegeExceedsLimit
	}
	sess, err := s.sessions.Activate(tmp, r.Privilege, r.InitialOutboundSequence)
	if err != nil {
		s.logger.WithError(err).Warn("activating session")
		return nil, ccNoSessionSlot
	}
	s.logger.WithFields(log.Fields{
		"session_id": sess.ID,
		"user":       u.Name,
		"auth_type":  sess.AuthType,
	}).Info("session activated")
	return &msg.ActivateSessionRsp{
		AuthType:               sess.AuthType,
		SessionID:              sess.ID,
		InitialInboundSequence: sess.inbound,
		MaximumPrivilege:       sess.MaxPrivilege,
	}, codec.CompletionCodeOK
}

func (s *Server) setPrivilege(sess *Session, r *msg.SetSessionPrivilegeLevelReq) (codec.Response, codec.CompletionCode) {
	if r.Privilege == 0 {
		return &msg.SetSessionPrivilegeLevelRsp{Privilege: sess.Privilege}, codec.CompletionCodeOK
	}
	if r.Privilege < msg.PrivilegeUser || r.Privilege > msg.PrivilegeOEM {
		return nil, codec.CompletionCodeInvalidField
	}
	if r.Privilege > sess.MaxPrivilege {
		return nil, ccPrivilegeExceedsLimit
	}
	sess.Privilege = r.Privilege
	return &msg.SetSessionPrivilegeLevelRsp{Privilege: sess.Privilege}, codec.CompletionCodeOK
}

func (s *Server) closeSession(sess *Session, r *msg.CloseSessionReq) (codec.Response, codec.CompletionCode) {
	target, ok := s.sessions.Get(r.SessionID)
	if r.SessionID == 0 {
		target, ok = s.sessions.ByHandle(r.SessionHandle)
	}
	if !ok || !target.Active {
		return nil, ccInvalidSessionID
	}
	if sess == nil || (target != sess && sess.Privilege < msg.PrivilegeAdministrator) {
		return nil, codec.CompletionCodeInsufficientPrivilege
	}
	s.sessions.Remove(target.ID)
	s.logger.WithField("session_id", target.ID).Info("session closed")
	return &msg.CloseSessionRsp{}, codec.CompletionCodeOK
}

func (s *Server) sessionInfo(sess *Session, r *msg.GetSessionInfoReq) (codec.Response, codec.CompletionCode) {
	var (
		target *Session
		ok     bool
	)
	switch r.Index {
	case msg.SessionIndexCurrent:
		target, ok = sess, sess != nil
	case msg.SessionIndexByHandle:
		target, ok = s.sessions.ByHandle(r.SessionHandle)
	case msg.SessionIndexByID:
		target, ok = s.sessions.Get(r.SessionID)
	default:
		target, ok = s.sessions.ByHandle(r.Index)
	}
	rsp := &msg.GetSessionInfoRsp{
		PossibleSessions: maxSessions,
		ActiveSessions:   uint8(s.sessions.Active()),
	}
	if ok && target.Active {
		rsp.SessionHandle = target.Handle
		rsp.UserID = target.UserID
		rsp.Privilege = target.Privilege
		rsp.ChannelNumber = s.state.Channel().Number
	}
	return rsp, codec.CompletionCodeOK
}
