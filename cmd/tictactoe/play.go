package main

import (
    "fmt"
    "io"
    "os"
    "strings"

    "github.com/jaminalder/tictactoe/internal/domain"
)

// PlayCmd replays moves on a fresh engine. Ignored moves are reported, not fatal.
type PlayCmd struct {
    Moves []int `arg:"" optional:"" help:"Cell indices 0-8, row-major, X first"`
}

func (c *PlayCmd) Run() error {
    return replay(os.Stdout, c.Moves)
}

func replay(w io.Writer, moves []int) error {
    g := domain.New()
    for _, m := range moves {
        player := g.Turn()
        if err := g.Check(m); err != nil {
            fmt.Fprintf(w, "%s %d: ignored (%v)\n", player, m, err)
            continue
        }
        g.Apply(m)
    }
    _, err := io.WriteString(w, renderText(g))
    return err
}

func renderText(g domain.Game) string {
    var b strings.Builder
    board := g.Board()
    for r := 0; r < 3; r++ {
        for c := 0; c < 3; c++ {
            mark := board[r*3+c].String()
            if mark == "" {
                mark = "."
            }
            b.WriteString(mark)
            if c < 2 {
                b.WriteByte(' ')
            }
        }
        b.WriteByte('\n')
    }
    switch g.Status() {
    case domain.Win:
        line, _ := g.WinningLine()
        fmt.Fprintf(&b, "winner: %s line: %v\n", g.Winner(), line)
    case domain.Tie:
        b.WriteString("tie\n")
    default:
        fmt.Fprintf(&b, "to move: %s\n", g.Turn())
    }
    return b.String()
}
