package room

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/cardsync/internal/chat"
)

// Top-level envelope types.
const (
	TypeSetName   = "set_name"
	TypeStartGame = "start_game"
	TypeChat      = "chat"
	TypeGame      = "game"
	TypeUserList  = "userList"
	TypeHistory   = "history"
)

// Subtypes under "game".
const (
	SubtypeCards             = "cards"
	SubtypeScore             = "score"
	SubtypeNewRound          = "new_round"
	SubtypeRequestCardChange = "request_card_change"
	SubtypeStartGameStatus   = "start_game_status"
	SubtypeGameStart         = "game_start"
)

// Card is one card in play. The server never interprets suit or rank; clients
// own the game arithmetic.
type Card struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

// inboundHeader carries the discriminating fields of a client envelope.
type inboundHeader struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

// Client payloads, one struct per recognized envelope.

type SetNamePayload struct {
	Name string `json:"name"`
}

type StartGamePayload struct {
	Username string `json:"username"`
}

type ChatPayload struct {
	ContentType chat.ContentType `json:"content_type"`
	Content     string           `json:"content"`
}

type CardsPayload struct {
	Cards []Card `json:"cards"`
}

type ScorePayload struct {
	Scores     map[string]int `json:"scores"`
	Winner     string         `json:"winner"`
	RoundWin   string         `json:"roundWin"`
	Expression string         `json:"expression"`
}

type NewRoundPayload struct{}

type CardChangePayload struct {
	Requester  string `json:"requester"`
	AgreedUser string `json:"agreedUser"`
}

// parseInbound decodes a raw client envelope into its typed payload. An
// unrecognized type or subtype yields a nil payload and no error so the
// caller can drop it as a forward-compatible no-op.
func parseInbound(data []byte) (inboundHeader, any, error) {
	var header inboundHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return header, nil, fmt.Errorf("failed to parse envelope: %w", err)
	}

	unmarshal := func(v any) (inboundHeader, any, error) {
		if err := json.Unmarshal(data, v); err != nil {
			return header, nil, fmt.Errorf("failed to parse %s payload: %w", header.Type, err)
		}
		return header, v, nil
	}

	switch header.Type {
	case TypeSetName:
		var p SetNamePayload
		return unmarshal(&p)
	case TypeStartGame:
		var p StartGamePayload
		return unmarshal(&p)
	case TypeChat:
		var p ChatPayload
		return unmarshal(&p)
	case TypeGame:
		switch header.Subtype {
		case SubtypeCards:
			var p CardsPayload
			return unmarshal(&p)
		case SubtypeScore:
			var p ScorePayload
			return unmarshal(&p)
		case SubtypeNewRound:
			return header, &NewRoundPayload{}, nil
		case SubtypeRequestCardChange:
			var p CardChangePayload
			return unmarshal(&p)
		default:
			return header, nil, nil
		}
	default:
		return header, nil, nil
	}
}

// Server-to-client messages. Each is marshaled once per broadcast, on the
// connection manager's goroutine, so constructors copy any mutable state they
// are handed rather than aliasing the actor's.

type UserListMessage struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

func newUserListMessage(users []string) UserListMessage {
	return UserListMessage{Type: TypeUserList, Users: users}
}

type HistoryMessage struct {
	Type     string         `json:"type"`
	Messages []chat.Message `json:"messages"`
}

func newHistoryMessage(messages []chat.Message) HistoryMessage {
	return HistoryMessage{Type: TypeHistory, Messages: messages}
}

// ChatBroadcast is a chat message on the wire; the embedded message fields
// are flattened alongside the type tag.
type ChatBroadcast struct {
	Type string `json:"type"`
	chat.Message
}

func newChatBroadcast(msg chat.Message) ChatBroadcast {
	return ChatBroadcast{Type: TypeChat, Message: msg}
}

type CardsMessage struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Cards   []Card `json:"cards"`
}

func newCardsMessage(cards []Card) CardsMessage {
	copied := make([]Card, len(cards))
	copy(copied, cards)
	return CardsMessage{Type: TypeGame, Subtype: SubtypeCards, Cards: copied}
}

// ScoreMessage carries the score map plus at most one of the win fields: a
// terminal winner suppresses the round-win/countdown fields entirely.
type ScoreMessage struct {
	Type       string         `json:"type"`
	Subtype    string         `json:"subtype"`
	Scores     map[string]int `json:"scores"`
	Winner     string         `json:"winner,omitempty"`
	RoundWin   string         `json:"roundWin,omitempty"`
	Countdown  int            `json:"countdown,omitempty"`
	Expression string         `json:"expression,omitempty"`
}

func newScoreMessage(scores map[string]int) ScoreMessage {
	copied := make(map[string]int, len(scores))
	for name, score := range scores {
		copied[name] = score
	}
	return ScoreMessage{Type: TypeGame, Subtype: SubtypeScore, Scores: copied}
}

// CardChangeMessage echoes the consensus state. Requester is a pointer so a
// voided request is broadcast as an explicit null.
type CardChangeMessage struct {
	Type        string   `json:"type"`
	Subtype     string   `json:"subtype"`
	Requester   *string  `json:"requester"`
	AgreedUsers []string `json:"agreedUsers"`
}

func newCardChangeMessage(requester *string, agreedUsers []string) CardChangeMessage {
	copied := make([]string, len(agreedUsers))
	copy(copied, agreedUsers)
	return CardChangeMessage{
		Type:        TypeGame,
		Subtype:     SubtypeRequestCardChange,
		Requester:   requester,
		AgreedUsers: copied,
	}
}

type StartGameStatusMessage struct {
	Type         string   `json:"type"`
	Subtype      string   `json:"subtype"`
	StartedUsers []string `json:"startedUsers"`
}

func newStartGameStatusMessage(startedUsers []string) StartGameStatusMessage {
	copied := make([]string, len(startedUsers))
	copy(copied, startedUsers)
	return StartGameStatusMessage{Type: TypeGame, Subtype: SubtypeStartGameStatus, StartedUsers: copied}
}

// GameSignal is a bare game envelope with no payload (new_round, game_start).
type GameSignal struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
}

func newGameSignal(subtype string) GameSignal {
	return GameSignal{Type: TypeGame, Subtype: subtype}
}
