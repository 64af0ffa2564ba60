package domain

import (
    "encoding/json"
    "errors"
    "fmt"
)

// ErrCorruptSnapshot is returned when decoded state breaks a board invariant.
var ErrCorruptSnapshot = errors.New("corrupt game snapshot")

type snapshot struct {
    X      Mask   `json:"x"`
    O      Mask   `json:"o"`
    Turn   string `json:"turn"`
    Status string `json:"status"`
    Line   *Line  `json:"line"`
}

func (g Game) MarshalJSON() ([]byte, error) {
    s := snapshot{X: g.x, O: g.o, Turn: g.turn.String(), Status: g.status.String()}
    if g.won {
        l := g.line
        s.Line = &l
    }
    return json.Marshal(s)
}

func (g *Game) UnmarshalJSON(data []byte) error {
    var s snapshot
    if err := json.Unmarshal(data, &s); err != nil {
        return err
    }
    out, err := fromSnapshot(s)
    if err != nil {
        return err
    }
    *g = out
    return nil
}

func fromSnapshot(s snapshot) (Game, error) {
    g := Game{x: s.X, o: s.O}

    if s.X&^Full != 0 || s.O&^Full != 0 {
        return Game{}, fmt.Errorf("%w: mask outside board", ErrCorruptSnapshot)
    }
    if s.X&s.O != 0 {
        return Game{}, fmt.Errorf("%w: masks overlap", ErrCorruptSnapshot)
    }

    switch s.Turn {
    case "X":
        g.turn = X
    case "O":
        g.turn = O
    default:
        return Game{}, fmt.Errorf("%w: turn %q", ErrCorruptSnapshot, s.Turn)
    }

    switch s.Status {
    case "ongoing":
        g.status = Ongoing
    case "win":
        g.status = Win
    case "tie":
        g.status = Tie
    default:
        return Game{}, fmt.Errorf("%w: status %q", ErrCorruptSnapshot, s.Status)
    }

    // X moves first, so it holds as many marks as O or exactly one more.
    var next Player
    switch s.X.Count() - s.O.Count() {
    case 0:
        next = X
    case 1:
        next = O
    default:
        return Game{}, fmt.Errorf("%w: %d X marks against %d O marks", ErrCorruptSnapshot, s.X.Count(), s.O.Count())
    }
    want := next
    if g.status == Win {
        want = next.Other()
    }
    if g.turn != want {
        return Game{}, fmt.Errorf("%w: turn %s, marks say %s", ErrCorruptSnapshot, g.turn, want)
    }

    if g.status == Win {
        if s.Line == nil {
            return Game{}, fmt.Errorf("%w: win without line", ErrCorruptSnapshot)
        }
        if !validLine(*s.Line, g.mask(g.turn)) {
            return Game{}, fmt.Errorf("%w: line %v not held by %s", ErrCorruptSnapshot, *s.Line, g.turn)
        }
        if holdsLine(g.mask(g.turn.Other())) {
            return Game{}, fmt.Errorf("%w: both players hold a line", ErrCorruptSnapshot)
        }
        g.line = *s.Line
        g.won = true
    } else {
        if s.Line != nil {
            return Game{}, fmt.Errorf("%w: line without win", ErrCorruptSnapshot)
        }
        if holdsLine(s.X) || holdsLine(s.O) {
            return Game{}, fmt.Errorf("%w: completed line on a %s game", ErrCorruptSnapshot, g.status)
        }
    }

    if g.status == Tie && g.x|g.o != Full {
        return Game{}, fmt.Errorf("%w: tie on open board", ErrCorruptSnapshot)
    }
    return g, nil
}

func validLine(l Line, held Mask) bool {
    for i, wl := range winLines {
        if wl == l {
            return held&winPatterns[i] == winPatterns[i]
        }
    }
    return false
}

func holdsLine(m Mask) bool {
    for _, p := range winPatterns {
        if m&p == p {
            return true
        }
    }
    return false
}
