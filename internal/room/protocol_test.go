package room

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	t.Parallel()

	t.Run("it should parse each recognized envelope into its payload", func(t *testing.T) {
		_, payload, err := parseInbound([]byte(`{"type":"set_name","name":"Alice"}`))
		require.NoError(t, err)
		require.Equal(t, &SetNamePayload{Name: "Alice"}, payload)

		_, payload, err = parseInbound([]byte(`{"type":"start_game","username":"Alice"}`))
		require.NoError(t, err)
		require.Equal(t, &StartGamePayload{Username: "Alice"}, payload)

		_, payload, err = parseInbound([]byte(`{"type":"game","subtype":"score","scores":{"Alice":1},"roundWin":"Alice","expression":"8*3"}`))
		require.NoError(t, err)
		score, ok := payload.(*ScorePayload)
		require.True(t, ok)
		require.Equal(t, map[string]int{"Alice": 1}, score.Scores)
		require.Equal(t, "Alice", score.RoundWin)
		require.Equal(t, "8*3", score.Expression)

		_, payload, err = parseInbound([]byte(`{"type":"game","subtype":"new_round"}`))
		require.NoError(t, err)
		require.Equal(t, &NewRoundPayload{}, payload)
	})

	t.Run("it should return a nil payload for unknown types", func(t *testing.T) {
		header, payload, err := parseInbound([]byte(`{"type":"emote","subtype":"wave"}`))
		require.NoError(t, err)
		require.Nil(t, payload)
		require.Equal(t, "emote", header.Type)

		_, payload, err = parseInbound([]byte(`{"type":"game","subtype":"split"}`))
		require.NoError(t, err)
		require.Nil(t, payload)
	})

	t.Run("it should fail on malformed JSON", func(t *testing.T) {
		_, _, err := parseInbound([]byte(`{"type":`))
		require.Error(t, err)
	})
}

func TestOutboundWireShapes(t *testing.T) {
	t.Parallel()

	t.Run("it should encode a voided card-change request with a null requester", func(t *testing.T) {
		data, err := json.Marshal(newCardChangeMessage(nil, nil))
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"game","subtype":"request_card_change","requester":null,"agreedUsers":[]}`, string(data))
	})

	t.Run("it should omit round-win fields on a terminal winner", func(t *testing.T) {
		msg := newScoreMessage(map[string]int{"Alice": 2})
		msg.Winner = "Alice"
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"game","subtype":"score","scores":{"Alice":2},"winner":"Alice"}`, string(data))
	})

	t.Run("it should carry countdown and expression on a round win", func(t *testing.T) {
		msg := newScoreMessage(map[string]int{"Alice": 1})
		msg.RoundWin = "Alice"
		msg.Countdown = 5
		msg.Expression = "(1+2)*8"
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		require.JSONEq(t, `{"type":"game","subtype":"score","scores":{"Alice":1},"roundWin":"Alice","countdown":5,"expression":"(1+2)*8"}`, string(data))
	})
}
