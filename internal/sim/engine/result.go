package engine

type Result int

const (
	Incomplete Result = iota
	Win
	Loss
	Tie
)

var resultNames = [...]string{"INCOMPLETE", "WIN", "LOSS", "TIE"}

func (r Result) String() string {
	if r < Incomplete || r > Tie {
		return "UNKNOWN"
	}
	return resultNames[r]
}

// Teams pairs agents diagonally across the board: 0 with 2, 1 with 3.
func TeamOf(id int) int { return id % 2 }

func (m *ForwardModel) IsEnded() bool { return m.ended }

func (m *ForwardModel) Results() [NumPlayers]Result { return m.results }

func (m *ForwardModel) Result(id int) Result { return m.results[id] }

// Winner returns the single winning agent of a free-for-all, or the lowest id
// of the winning team.
func (m *ForwardModel) Winner() (int, bool) {
	for i, r := range m.results {
		if r == Win {
			return i, true
		}
	}
	return -1, false
}

func (m *ForwardModel) checkTerminal() {
	alive := 0
	for _, a := range m.avatars {
		if a.Alive {
			alive++
		}
	}

	switch m.cfg.Mode {
	case Team:
		var teamAlive [2]int
		for _, a := range m.avatars {
			if a.Alive {
				teamAlive[TeamOf(a.ID)]++
			}
		}
		switch {
		case teamAlive[0] == 0 && teamAlive[1] == 0:
			m.finish(func(Avatar) Result { return Tie })
			return
		case teamAlive[0] == 0 || teamAlive[1] == 0:
			winner := 0
			if teamAlive[1] > 0 {
				winner = 1
			}
			m.finish(func(a Avatar) Result {
				if TeamOf(a.ID) == winner {
					return Win
				}
				return Loss
			})
			return
		}
	default:
		switch {
		case alive == 0:
			m.finish(func(Avatar) Result { return Tie })
			return
		case alive == 1:
			m.finish(func(a Avatar) Result {
				if a.Alive {
					return Win
				}
				return Loss
			})
			return
		}
	}

	if m.cfg.MaxTicks > 0 && m.tick >= m.cfg.MaxTicks {
		m.finish(func(a Avatar) Result {
			if a.Alive {
				return Tie
			}
			return Loss
		})
	}
}

func (m *ForwardModel) finish(outcome func(Avatar) Result) {
	m.ended = true
	for i, a := range m.avatars {
		m.results[i] = outcome(a)
	}
}
