package room

// CardChangeRequest tracks an in-flight re-deal consensus. The requester
// implicitly agrees, so AgreedUsers always contains it; entries are kept in
// agreement order.
type CardChangeRequest struct {
	Requester   string
	AgreedUsers []string
}

// GameState is the single authoritative record for the session. It is owned
// by the room actor and never touched from another goroutine.
type GameState struct {
	Cards  []Card
	Scores map[string]int

	// Winner is terminal for the session once set.
	Winner string

	// RoundWinner and CountdownRemaining are transient between a round win
	// and the next round.
	RoundWinner        string
	CountdownRemaining int

	CardChange *CardChangeRequest

	// StartedUsers accumulates readiness signals; Started latches once the
	// start quorum has fired so repeat signals are no-ops.
	StartedUsers []string
	Started      bool
}

func newGameState() *GameState {
	return &GameState{
		Scores: make(map[string]int),
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
