package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
	// Seat asks for a specific agent slot; the first free one otherwise.
	Seat       *int `json:"seat,omitempty"`
	Negotiates bool `json:"negotiates,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	MatchID         string      `json:"match_id"`
	Seat            int         `json:"seat"`
	Params          MatchParams `json:"params"`
}

type MatchParams struct {
	Mode           string   `json:"mode"`
	BoardSize      int      `json:"board_size"`
	MaxTicks       int      `json:"max_ticks"`
	VisionRange    int      `json:"vision_range"`
	BombLife       int      `json:"bomb_life"`
	FlameLife      int      `json:"flame_life"`
	NegotiateEvery int      `json:"negotiate_every"`
	ProposalLimit  int      `json:"proposal_limit"`
	ActionTimeout  int      `json:"action_timeout_ms"`
	AgreementTypes []string `json:"agreement_types"`
	Actions        []string `json:"actions"`
}
