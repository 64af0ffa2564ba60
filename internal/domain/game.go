package domain

import "errors"

// Player identifies who occupies a cell or whose turn it is.
type Player uint8

const (
    None Player = iota
    X
    O
)

func (p Player) String() string {
    switch p {
    case X:
        return "X"
    case O:
        return "O"
    default:
        return ""
    }
}

// Other returns the opponent of p. None has no opponent.
func (p Player) Other() Player {
    switch p {
    case X:
        return O
    case O:
        return X
    default:
        return None
    }
}

// Status is the lifecycle state of a game.
type Status uint8

const (
    Ongoing Status = iota
    Win
    Tie
)

func (s Status) String() string {
    switch s {
    case Win:
        return "win"
    case Tie:
        return "tie"
    default:
        return "ongoing"
    }
}

// Line holds the three cell indices of a winning pattern.
type Line [3]int

// Errors reported by Check. Apply never surfaces them; they only explain
// why a move was ignored.
var (
    ErrOutOfBounds = errors.New("out of bounds")
    ErrOccupied    = errors.New("cell occupied")
    ErrGameOver    = errors.New("game over")
)

// winPatterns and winLines are parallel: winLines[i] lists the cells of winPatterns[i].
var (
    winPatterns = [8]Mask{
        0b000_000_111, // rows
        0b000_111_000,
        0b111_000_000,
        0b001_001_001, // cols
        0b010_010_010,
        0b100_100_100,
        0b100_010_001, // diags
        0b001_010_100,
    }
    winLines = [8]Line{
        {0, 1, 2}, {3, 4, 5}, {6, 7, 8},
        {0, 3, 6}, {1, 4, 7}, {2, 5, 8},
        {0, 4, 8}, {2, 4, 6},
    }
)

// Game holds the state of one tic-tac-toe match. Use New; the zero value has
// no player to move.
type Game struct {
    x, o   Mask
    turn   Player
    status Status
    line   Line
    won    bool
}

// New returns an empty game with X to move.
func New() Game {
    return Game{turn: X}
}

// Check reports why a move at index would be ignored, or nil if it is legal.
func (g Game) Check(index int) error {
    if g.status != Ongoing {
        return ErrGameOver
    }
    if index < 0 || index >= Cells {
        return ErrOutOfBounds
    }
    if (g.x | g.o).Has(index) {
        return ErrOccupied
    }
    return nil
}

// Apply places the current player's mark at index. Illegal moves leave the
// game untouched and return false.
func (g *Game) Apply(index int) bool {
    if g.Check(index) != nil {
        return false
    }

    mask := g.mask(g.turn).With(index)
    if g.turn == X {
        g.x = mask
    } else {
        g.o = mask
    }

    for i, p := range winPatterns {
        if mask&p == p {
            g.status = Win
            g.line = winLines[i]
            g.won = true
            return true
        }
    }

    if g.x|g.o == Full {
        g.status = Tie
    }

    // Only a win keeps the mover on turn.
    g.turn = g.turn.Other()
    return true
}

// Reset returns the game to its initial state.
func (g *Game) Reset() {
    *g = New()
}

func (g Game) Status() Status { return g.status }

// WinningLine returns the cells of the completed line once the game is won.
func (g Game) WinningLine() (Line, bool) {
    return g.line, g.won
}

// Turn is the player to move, or the winner once the game is won. After a tie
// it is the player who did not make the last move.
func (g Game) Turn() Player { return g.turn }

// Winner is the player who completed a line, None otherwise.
func (g Game) Winner() Player {
    if g.status != Win {
        return None
    }
    return g.turn
}

func (g Game) Terminal() bool { return g.status != Ongoing }

func (g Game) Masks() (x, o Mask) { return g.x, g.o }

func (g Game) Moves() int { return g.x.Count() + g.o.Count() }

// Cell returns who occupies index; out-of-range indices are None.
func (g Game) Cell(index int) Player {
    switch {
    case g.x.Has(index):
        return X
    case g.o.Has(index):
        return O
    default:
        return None
    }
}

// Board expands both masks into a row-major cell array.
func (g Game) Board() [Cells]Player {
    var b [Cells]Player
    for i := range b {
        b[i] = g.Cell(i)
    }
    return b
}

// InLine reports whether index belongs to the winning line.
func (g Game) InLine(index int) bool {
    if !g.won {
        return false
    }
    for _, c := range g.line {
        if c == index {
            return true
        }
    }
    return false
}

func (g Game) mask(p Player) Mask {
    if p == X {
        return g.x
    }
    return g.o
}
