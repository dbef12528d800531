package http

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"github.com/vovakirdan/wireroom/internal/core"
	"github.com/vovakirdan/wireroom/internal/proto"
	"github.com/vovakirdan/wireroom/internal/store"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := decodeData(inbound.Data, &join); err != nil {
			return nil, badRequest("invalid join payload")
		}
		if join.Protocol != 0 && join.Protocol != proto.ProtocolVersion {
			return nil, &proto.Error{Code: "unsupported_version", Msg: "unsupported protocol version"}
		}
		if strings.TrimSpace(join.IdentityRef) == "" {
			return nil, badRequest("identity_ref is required")
		}
		return &core.Command{Kind: core.CommandJoin, Ref: join.IdentityRef}, nil
	case proto.InboundTypeMessage:
		var msg proto.MessageData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return nil, badRequest("invalid message payload")
		}
		return &core.Command{Kind: core.CommandSend, Body: msg.Body, ClientTS: msg.ClientTimestamp}, nil
	case proto.InboundTypeLeave:
		return &core.Command{Kind: core.CommandLeave}, nil
	case proto.InboundTypePresence:
		return &core.Command{Kind: core.CommandPresence}, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(data, dst)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventJoinSuccess:
		return eventOutbound(proto.EventNameJoinSuccess, proto.EventJoinSuccess{
			Room:     event.Room,
			Identity: identityToProto(event.Identity),
		})
	case core.EventJoinError:
		reason := proto.EventJoinError{Code: "unknown", Reason: "join failed"}
		if event.Error != nil {
			reason = proto.EventJoinError{Code: event.Error.Code, Reason: event.Error.Message}
		}
		return eventOutbound(proto.EventNameJoinError, reason)
	case core.EventUserJoined:
		return eventOutbound(proto.EventNameUserJoined, proto.EventUserJoined{
			Room:     event.Room,
			Identity: identityToProto(event.Identity),
		})
	case core.EventUserLeft:
		return eventOutbound(proto.EventNameUserLeft, proto.EventUserLeft{
			Room:     event.Room,
			Identity: identityToProto(event.Identity),
		})
	case core.EventPresence:
		return eventOutbound(proto.EventNamePresence, proto.EventPresence{
			Entries: lo.Map(event.Presence, func(e core.PresenceEntry, _ int) proto.Identity {
				return identityToProto(&e)
			}),
		})
	case core.EventHistory:
		return eventOutbound(proto.EventNameHistory, proto.EventHistory{
			Room: event.Room,
			Events: lo.Map(event.History, func(m core.Message, _ int) proto.ChatEvent {
				return chatEventToProto(m.ChatEvent, m.Avatar)
			}),
		})
	case core.EventNewMessage:
		if event.Message == nil {
			return proto.Outbound{Type: proto.OutboundTypeEvent}
		}
		return eventOutbound(proto.EventNameNewMessage, proto.EventNewMessage{
			Event:  chatEventToProto(event.Message.ChatEvent, event.Message.Avatar),
			IsSelf: event.IsSelf,
		})
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func identityToProto(id *core.Identity) proto.Identity {
	if id == nil {
		return proto.Identity{}
	}
	return proto.Identity{
		ID:          id.ID,
		DisplayName: id.DisplayName,
		AvatarRef:   id.AvatarRef,
		IsOnline:    id.IsOnline,
	}
}

func chatEventToProto(ev store.ChatEvent, avatar string) proto.ChatEvent {
	return proto.ChatEvent{
		SeqID:           ev.Seq,
		IdentityID:      ev.IdentityID,
		DisplayName:     ev.DisplayName,
		AvatarRef:       avatar,
		Body:            ev.Body,
		Kind:            ev.Kind,
		CommandResult:   ev.Result,
		ClientTimestamp: ev.ClientTS,
		CreatedAt:       ev.CreatedAt,
	}
}
