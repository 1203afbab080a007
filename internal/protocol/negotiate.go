package protocol

const (
	PhasePropose = "PROPOSE"
	PhaseReview  = "REVIEW"
)

// NEGOTIATE (server -> client). PROPOSE asks for PROPOSALS; REVIEW lists the
// proposals addressed to the seat and asks for RESPONSES.
type NegotiateMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Round           int           `json:"round"`
	Phase           string        `json:"phase"`
	Limit           int           `json:"limit"`
	Obs             ObsMsg        `json:"obs"`
	Proposals       []ProposalObs `json:"proposals,omitempty"`
}

type ProposalObs struct {
	ID        int    `json:"id"`
	From      int    `json:"from"`
	Agreement string `json:"agreement"`
}

// PROPOSALS (client -> server)
type ProposalsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Round           int     `json:"round"`
	Proposals       []Offer `json:"proposals"`
}

type Offer struct {
	To        int    `json:"to"`
	Agreement string `json:"agreement"`
}

// RESPONSES (client -> server)
type ResponsesMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Round           int        `json:"round"`
	Responses       []Response `json:"responses"`
}

type Response struct {
	ProposalID int    `json:"proposal_id"`
	Answer     string `json:"answer"`
}
