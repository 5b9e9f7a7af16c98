package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cardsync/internal/chat"
	"github.com/rs/zerolog/log"
)

// Broadcaster fans a message out to every open connection, or delivers it to
// a single one. Implementations must be safe for concurrent use; failures on
// individual connections are swallowed, never surfaced here.
type Broadcaster interface {
	Broadcast(v any)
	Send(connID uuid.UUID, v any)
}

// MessageStore is the chat-history collaborator. Both calls are best-effort
// from the room's point of view.
type MessageStore interface {
	Store(ctx context.Context, msg chat.Message) error
	RecentMessages(ctx context.Context, limit int) ([]chat.Message, error)
}

// Config holds the tunables of a session.
type Config struct {
	// WinThreshold is the score at which clients report a game win instead
	// of a round win. The server serves it to clients and never validates
	// reported scores against it.
	WinThreshold int

	// CountdownStart is the number of countdown units between a round win
	// and the automatic next round.
	CountdownStart int

	// CountdownInterval is the real-time length of one countdown unit.
	CountdownInterval time.Duration

	// HistoryLimit caps how many persisted messages are replayed on join.
	HistoryLimit int

	// StoreTimeout bounds a single persistence call.
	StoreTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		WinThreshold:      2,
		CountdownStart:    5,
		CountdownInterval: time.Second,
		HistoryLimit:      50,
		StoreTimeout:      5 * time.Second,
	}
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventClose
)

type event struct {
	kind     eventKind
	connID   uuid.UUID
	username string
	data     []byte
}

// Room is the sequential actor that owns the session: the user directory,
// the game state, and the round countdown. Every connection event, inbound
// message, and timer tick is processed to completion in arrival order, so
// state transitions need no locking.
type Room struct {
	cfg         Config
	broadcaster Broadcaster
	store       MessageStore
	clock       clockwork.Clock

	events chan event

	// connID -> username ("" until named); joinOrder keeps the directory
	// deterministic for user-list broadcasts and quorum denominators.
	users     map[uuid.UUID]string
	joinOrder []uuid.UUID

	state *GameState

	countdownTimer clockwork.Timer
}

// New builds a room. store may be nil, in which case chat history is neither
// persisted nor replayed.
func New(cfg Config, broadcaster Broadcaster, store MessageStore, clock clockwork.Clock) *Room {
	return &Room{
		cfg:         cfg,
		broadcaster: broadcaster,
		store:       store,
		clock:       clock,
		events:      make(chan event, 256),
		users:       make(map[uuid.UUID]string),
		state:       newGameState(),
	}
}

// Run drains the event channel until ctx is cancelled. It must be running
// for HandleOpen/HandleMessage/HandleClose to make progress.
func (r *Room) Run(ctx context.Context) error {
	log.Info().Msg("room started")

	for {
		select {
		case <-ctx.Done():
			r.stopCountdown()
			log.Info().Msg("room shutting down")
			return nil
		case ev := <-r.events:
			r.dispatch(ev)
		case <-r.countdownChan():
			r.handleCountdownTick()
		}
	}
}

// HandleOpen registers a new connection. username may be empty; clients
// without one are expected to follow up with a set_name envelope.
func (r *Room) HandleOpen(connID uuid.UUID, username string) {
	r.events <- event{kind: eventOpen, connID: connID, username: username}
}

// HandleMessage routes one raw inbound envelope from a connection.
func (r *Room) HandleMessage(connID uuid.UUID, data []byte) {
	r.events <- event{kind: eventMessage, connID: connID, data: data}
}

// HandleClose removes a connection and cleans up any quorum state the user
// participated in.
func (r *Room) HandleClose(connID uuid.UUID) {
	r.events <- event{kind: eventClose, connID: connID}
}

func (r *Room) dispatch(ev event) {
	switch ev.kind {
	case eventOpen:
		r.handleOpen(ev.connID, ev.username)
	case eventMessage:
		r.handleInbound(ev.connID, ev.data)
	case eventClose:
		r.handleClose(ev.connID)
	}
}

func (r *Room) handleOpen(connID uuid.UUID, username string) {
	r.users[connID] = ""
	r.joinOrder = append(r.joinOrder, connID)

	log.Info().
		Str("connection_id", connID.String()).
		Str("username", username).
		Msg("connection opened")

	if username != "" {
		r.setName(connID, username)
		r.sendHistory(connID)
	} else {
		r.broadcastUserList()
	}

	r.sendSnapshot(connID)
}

func (r *Room) handleInbound(connID uuid.UUID, data []byte) {
	header, payload, err := parseInbound(data)
	if err != nil {
		// Malformed payloads are dropped; the connection stays open.
		log.Warn().Err(err).Str("connection_id", connID.String()).Msg("dropping malformed message")
		return
	}
	if payload == nil {
		log.Debug().
			Str("type", header.Type).
			Str("subtype", header.Subtype).
			Msg("ignoring unrecognized message")
		return
	}

	switch p := payload.(type) {
	case *SetNamePayload:
		r.setName(connID, p.Name)
	case *StartGamePayload:
		r.recordStart(p.Username)
	case *ChatPayload:
		r.handleChat(connID, p)
	case *CardsPayload:
		r.recordCards(p.Cards)
	case *ScorePayload:
		r.recordScore(p)
	case *NewRoundPayload:
		r.beginNewRound()
	case *CardChangePayload:
		if p.AgreedUser == "" {
			r.requestCardChange(p.Requester)
		} else {
			r.agreeToCardChange(p.AgreedUser)
		}
	}
}

func (r *Room) handleClose(connID uuid.UUID) {
	username, known := r.users[connID]
	if !known {
		return
	}
	delete(r.users, connID)
	for i, id := range r.joinOrder {
		if id == connID {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}

	log.Info().
		Str("connection_id", connID.String()).
		Str("username", username).
		Msg("connection closed")

	if username != "" {
		r.onUserDisconnect(username)
	}

	r.broadcastUserList()
}

// setName binds a display name to a connection and replays the shared state
// the newcomer needs. A message for an unknown connection is a no-op, as is
// an attempt to rename.
func (r *Room) setName(connID uuid.UUID, name string) {
	current, known := r.users[connID]
	if !known || name == "" {
		return
	}
	if current != "" {
		log.Debug().
			Str("connection_id", connID.String()).
			Str("username", current).
			Msg("ignoring rename attempt")
		return
	}

	r.users[connID] = name
	if _, ok := r.state.Scores[name]; !ok {
		r.state.Scores[name] = 0
	}

	log.Info().Str("username", name).Msg("user joined")

	r.broadcastChat(chat.NewSystemMessage(name+" joined!", r.clock.Now()))
	r.broadcastUserList()
	r.broadcaster.Broadcast(r.scoreSnapshot())
	if len(r.state.Cards) > 0 {
		r.broadcaster.Broadcast(newCardsMessage(r.state.Cards))
	}
}

func (r *Room) handleChat(connID uuid.UUID, p *ChatPayload) {
	sender := r.users[connID]
	if sender == "" {
		// Chat before set_name has no attributable sender.
		log.Debug().Str("connection_id", connID.String()).Msg("ignoring chat from unnamed connection")
		return
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = chat.ContentTypeText
	}

	r.broadcastChat(chat.Message{
		ID:          uuid.New(),
		Sender:      sender,
		ContentType: contentType,
		Content:     p.Content,
		SentTime:    r.clock.Now(),
	})
}

// recordStart accumulates readiness signals and fires game_start exactly once,
// when every connected named user has signaled.
func (r *Room) recordStart(username string) {
	if username == "" || !contains(r.connectedUsernames(), username) {
		return
	}
	if r.state.Started {
		return
	}

	if !contains(r.state.StartedUsers, username) {
		r.state.StartedUsers = append(r.state.StartedUsers, username)
	}

	r.broadcaster.Broadcast(newStartGameStatusMessage(r.state.StartedUsers))

	connected := r.connectedUsernames()
	if len(connected) > 0 && len(r.state.StartedUsers) == len(connected) {
		r.state.Started = true
		log.Info().Int("players", len(connected)).Msg("all users started the game")
		r.broadcaster.Broadcast(newGameSignal(SubtypeGameStart))
		r.beginNewRound()
	}
}

func (r *Room) recordCards(cards []Card) {
	r.state.Cards = cards
	r.broadcaster.Broadcast(newCardsMessage(cards))
}

func (r *Room) recordScore(p *ScorePayload) {
	if p.Scores != nil {
		r.state.Scores = p.Scores
	}

	switch {
	case p.Winner != "":
		// Terminal: the game win suppresses the round-win/countdown path.
		r.state.Winner = p.Winner
		r.state.RoundWinner = ""
		r.stopCountdown()
		msg := newScoreMessage(r.state.Scores)
		msg.Winner = p.Winner
		r.broadcaster.Broadcast(msg)
	case p.RoundWin != "":
		r.state.RoundWinner = p.RoundWin
		r.startCountdown()
		msg := newScoreMessage(r.state.Scores)
		msg.RoundWin = p.RoundWin
		msg.Countdown = r.state.CountdownRemaining
		msg.Expression = p.Expression
		r.broadcaster.Broadcast(msg)
	default:
		r.broadcaster.Broadcast(r.scoreSnapshot())
	}
}

// beginNewRound resets the per-round state. Any pending countdown is
// cancelled first so a superseded timer can never fire into the new round.
func (r *Room) beginNewRound() {
	r.stopCountdown()
	r.state.Cards = nil
	r.state.CardChange = nil
	r.state.RoundWinner = ""
	r.broadcaster.Broadcast(newGameSignal(SubtypeNewRound))
}

// requestCardChange opens a re-deal consensus. While one is active, further
// requests are ignored; only agreement moves it forward.
func (r *Room) requestCardChange(requester string) {
	if requester == "" || !contains(r.connectedUsernames(), requester) {
		return
	}
	if r.state.CardChange != nil {
		log.Debug().
			Str("requester", requester).
			Str("active_requester", r.state.CardChange.Requester).
			Msg("ignoring card-change request while one is active")
		return
	}

	r.state.CardChange = &CardChangeRequest{
		Requester:   requester,
		AgreedUsers: []string{requester},
	}
	r.broadcastCardChange()
	r.resolveCardChange()
}

func (r *Room) agreeToCardChange(username string) {
	cc := r.state.CardChange
	if cc == nil || username == "" || !contains(r.connectedUsernames(), username) {
		return
	}

	if !contains(cc.AgreedUsers, username) {
		cc.AgreedUsers = append(cc.AgreedUsers, username)
	}
	r.broadcastCardChange()
	r.resolveCardChange()
}

// resolveCardChange forces a new round once every connected user has agreed.
func (r *Room) resolveCardChange() {
	cc := r.state.CardChange
	if cc == nil {
		return
	}
	connected := r.connectedUsernames()
	if len(connected) == 0 || len(cc.AgreedUsers) != len(connected) {
		return
	}

	log.Info().Str("requester", cc.Requester).Msg("card change agreed by all users")
	r.beginNewRound()
}

// onUserDisconnect removes the user from every quorum tracker. If the user
// was the requester of an in-flight card change, the whole request is voided;
// a non-requester leaving never re-triggers the quorum check.
func (r *Room) onUserDisconnect(username string) {
	delete(r.state.Scores, username)
	r.state.StartedUsers = remove(r.state.StartedUsers, username)

	if cc := r.state.CardChange; cc != nil {
		if cc.Requester == username {
			r.state.CardChange = nil
			r.broadcaster.Broadcast(newCardChangeMessage(nil, nil))
		} else {
			cc.AgreedUsers = remove(cc.AgreedUsers, username)
		}
	}

	r.broadcaster.Broadcast(r.scoreSnapshot())
}

// connectedUsernames derives the quorum denominator from the live directory.
// It is recomputed on every call; caching it would go stale across
// disconnects.
func (r *Room) connectedUsernames() []string {
	names := make([]string, 0, len(r.joinOrder))
	for _, connID := range r.joinOrder {
		if name := r.users[connID]; name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (r *Room) broadcastUserList() {
	r.broadcaster.Broadcast(newUserListMessage(r.connectedUsernames()))
}

func (r *Room) broadcastCardChange() {
	cc := r.state.CardChange
	if cc == nil {
		r.broadcaster.Broadcast(newCardChangeMessage(nil, nil))
		return
	}
	requester := cc.Requester
	r.broadcaster.Broadcast(newCardChangeMessage(&requester, cc.AgreedUsers))
}

// scoreSnapshot reflects the current score state: the terminal winner if one
// is set, otherwise any transient round winner.
func (r *Room) scoreSnapshot() ScoreMessage {
	msg := newScoreMessage(r.state.Scores)
	if r.state.Winner != "" {
		msg.Winner = r.state.Winner
	} else if r.state.RoundWinner != "" {
		msg.RoundWin = r.state.RoundWinner
		msg.Countdown = r.state.CountdownRemaining
	}
	return msg
}

// sendSnapshot replays the shared state to a single (re)joining connection.
func (r *Room) sendSnapshot(connID uuid.UUID) {
	if len(r.state.Cards) > 0 {
		r.broadcaster.Send(connID, newCardsMessage(r.state.Cards))
	}
	r.broadcaster.Send(connID, r.scoreSnapshot())
	if cc := r.state.CardChange; cc != nil {
		requester := cc.Requester
		r.broadcaster.Send(connID, newCardChangeMessage(&requester, cc.AgreedUsers))
	}
}

// broadcastChat fans the message out first and persists it after; the write
// outcome never affects the already-sent broadcast.
func (r *Room) broadcastChat(msg chat.Message) {
	r.broadcaster.Broadcast(newChatBroadcast(msg))

	if r.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StoreTimeout)
		defer cancel()
		if err := r.store.Store(ctx, msg); err != nil {
			log.Error().Err(err).Str("sender", msg.Sender).Msg("failed to persist chat message")
		}
	}()
}

// sendHistory replays recent chat to a freshly named connection. The fetch
// runs off the actor goroutine so a slow store never stalls the session.
func (r *Room) sendHistory(connID uuid.UUID) {
	if r.store == nil {
		return
	}
	limit := r.cfg.HistoryLimit
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StoreTimeout)
		defer cancel()
		messages, err := r.store.RecentMessages(ctx, limit)
		if err != nil {
			log.Error().Err(err).Msg("failed to load chat history")
			return
		}
		r.broadcaster.Send(connID, newHistoryMessage(messages))
	}()
}
