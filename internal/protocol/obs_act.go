package protocol

// OBS (server -> client): the seat's partially observable view of one tick.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            int    `json:"tick"`
	Seat            int    `json:"seat"`

	// Board holds tile codes, row-major; hidden cells carry the fog code.
	Board      [][]int        `json:"board"`
	Self       AgentObs       `json:"self"`
	Agents     []AgentObs     `json:"agents"`
	Alive      []int          `json:"alive"`
	Bombs      []BombObs      `json:"bombs"`
	Flames     []FlameObs     `json:"flames"`
	Agreements []AgreementObs `json:"agreements"`

	Ended   bool     `json:"ended,omitempty"`
	Results []string `json:"results,omitempty"`
}

type AgentObs struct {
	ID            int  `json:"id"`
	Visible       bool `json:"visible"`
	Row           int  `json:"row"`
	Col           int  `json:"col"`
	Alive         bool `json:"alive"`
	Ammo          int  `json:"ammo,omitempty"`
	BlastStrength int  `json:"blast_strength,omitempty"`
	CanKick       bool `json:"can_kick,omitempty"`
}

type BombObs struct {
	Row           int    `json:"row"`
	Col           int    `json:"col"`
	Owner         int    `json:"owner"`
	BlastStrength int    `json:"blast_strength"`
	Life          int    `json:"life"`
	Moving        string `json:"moving,omitempty"`
}

type FlameObs struct {
	Row  int `json:"row"`
	Col  int `json:"col"`
	Life int `json:"life"`
}

type AgreementObs struct {
	A    int    `json:"a"`
	B    int    `json:"b"`
	Type string `json:"type"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            int    `json:"tick"`
	Action          string `json:"action"`
}
