package controller

import (
	"encoding/json"
	"errors"

	"github.com/watchroom/server/internal/service/room"
)

// Inbound messages form a closed set: decodeInbound is the single place a
// raw frame becomes a typed value, and the dispatch switch in serveConn is
// exhaustive over these types. Adding a message type means adding a variant
// here and a case there.
var errUnknownMessageType = errors.New("unknown message type")

type inboundMessage interface {
	isInboundMessage()
}

type chatMessageInput struct {
	Message string `json:"message"`
}

type playbackInput struct {
	Action room.PlaybackAction `json:"-"`
	Time   float64             `json:"time"`
}

type playerEventInput struct {
	Data struct {
		Event       string  `json:"event"`
		CurrentTime float64 `json:"currentTime"`
		Duration    float64 `json:"duration"`
		Progress    float64 `json:"progress"`
	} `json:"data"`
}

type syncCheckInput struct {
	ClientTime float64 `json:"client_time"`
}

type moderationInput struct {
	Kind   string `json:"-"`
	UserId string `json:"user_id" validate:"required"`
}

func (chatMessageInput) isInboundMessage() {}
func (playbackInput) isInboundMessage()    {}
func (playerEventInput) isInboundMessage() {}
func (syncCheckInput) isInboundMessage()   {}
func (moderationInput) isInboundMessage()  {}

func decodeInbound(data []byte) (inboundMessage, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	switch envelope.Type {
	case "CHAT_MESSAGE":
		var input chatMessageInput
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, err
		}
		return &input, nil
	case "PLAY", "PAUSE", "SEEK":
		var input playbackInput
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, err
		}
		input.Action = room.PlaybackAction(envelope.Type)
		return &input, nil
	case "PLAYER_EVENT":
		var input playerEventInput
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, err
		}
		return &input, nil
	case "SYNC_CHECK":
		var input syncCheckInput
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, err
		}
		return &input, nil
	case "MUTE_USER", "BAN_USER", "KICK_USER":
		var input moderationInput
		if err := json.Unmarshal(data, &input); err != nil {
			return nil, err
		}
		input.Kind = envelope.Type
		return &input, nil
	default:
		return nil, errUnknownMessageType
	}
}
