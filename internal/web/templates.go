package web

import (
    "bytes"
    "html/template"

    "github.com/jaminalder/tictactoe/internal/app"
    "github.com/jaminalder/tictactoe/internal/domain"
)

type templates struct {
    page  *template.Template
    board *template.Template
}

func loadTemplates() *templates {
    base := template.Must(template.New("base").Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org@1.9.12/dist/ext/sse.js"></script>
<style>` + styles + `</style>
</head><body>{{template "content" .}}</body></html>`))
    // Define the board template within the same set so the page can include it
    template.Must(base.New("board").Parse(boardTemplate))
    page := template.Must(base.Clone())
    template.Must(page.New("content").Parse(`
<main hx-ext="sse" sse-connect="/events">
  <div sse-swap="board">{{template "board" .}}</div>
</main>`))
    // Standalone board template used for fragment rendering
    board := template.Must(template.New("board_only").Parse(boardTemplate))
    return &templates{page: page, board: board}
}

func renderTemplate(t *template.Template, data any) []byte {
    var buf bytes.Buffer
    _ = t.Execute(&buf, data)
    return buf.Bytes()
}

const boardTemplate = `
<div id="board">
  <div class="o-titleGrid">
    <h1>Tic-Tac-Toe game is <i>{{.Headline}}</i></h1>
    <p data-player="{{.Current}}">Current Player: <b>{{.Current}}</b></p>
  </div>
  <div class="o-gameGrid">
    {{range .Cells}}
    <form action="/play/{{.Index}}" method="post" hx-post="/play/{{.Index}}" hx-target="#board" hx-swap="outerHTML">
      <button type="submit" data-cell="{{.Index}}" data-player="{{.Mark}}"{{if .Highlight}} class="u-highlight"{{end}}{{if $.Disabled}} disabled{{end}}>{{.Mark}}</button>
    </form>
    {{end}}
  </div>
  <form action="/reset" method="post" hx-post="/reset" hx-target="#board" hx-swap="outerHTML">
    <button type="submit" class="o-reset">New game</button>
  </form>
</div>
`

const styles = `
body { font-family: system-ui, sans-serif; display: flex; justify-content: center; }
.o-titleGrid { text-align: center; }
.o-gameGrid { display: grid; grid-template-columns: repeat(3, 6rem); gap: .25rem; justify-content: center; }
.o-gameGrid form { margin: 0; }
.o-gameGrid button { width: 6rem; height: 6rem; font-size: 3rem; cursor: pointer; }
.o-gameGrid button:disabled { cursor: default; }
[data-player="X"] { color: #c0392b; }
[data-player="O"] { color: #2471a3; }
.u-highlight { background: #f7dc6f; }
.o-reset { display: block; margin: 1rem auto; }
`

type cellView struct {
    Index     int
    Mark      string
    Highlight bool
}

type boardView struct {
    Headline string
    Current  string
    Disabled bool
    Cells    []cellView
}

func newBoardView(g domain.Game) boardView {
    v := boardView{
        Current:  g.Turn().String(),
        Disabled: g.Terminal(),
        Cells:    make([]cellView, domain.Cells),
    }
    switch g.Status() {
    case domain.Win:
        v.Headline = "finished! Winner is " + g.Winner().String()
    case domain.Tie:
        v.Headline = "tied"
    default:
        v.Headline = "on-going"
    }
    for i, p := range g.Board() {
        v.Cells[i] = cellView{Index: i, Mark: p.String(), Highlight: g.InLine(i)}
    }
    return v
}

func (t *templates) renderBoard(s app.Session) []byte {
    return renderTemplate(t.board, newBoardView(s.Game))
}

func (t *templates) renderPage(s app.Session) []byte {
    return renderTemplate(t.page, newBoardView(s.Game))
}
