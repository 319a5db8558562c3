// Package repl is an interactive SQL shell over a store, modelled on the
// MySQL client: statements end with a semicolon, results print as boxed
// tables with a row count and timing, and DESC / SHOW TABLES / SHOW CREATE
// TABLE work on every backend.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/csvsql/internal/logging"
	"github.com/JonMunkholm/csvsql/internal/render"
	"github.com/JonMunkholm/csvsql/internal/store"
	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// LineReader supplies input lines. *readline.Instance satisfies it.
// Readline returns readline.ErrInterrupt on Ctrl+C and io.EOF on Ctrl+D.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// REPL runs statements typed by a user against a store.
type REPL struct {
	db     store.DB
	out    io.Writer
	errOut io.Writer
	box    render.Box
	now    func() time.Time
}

// New returns a shell writing results to out and errors to errOut.
func New(db store.DB, out, errOut io.Writer, width render.Width) *REPL {
	return &REPL{
		db:     db,
		out:    out,
		errOut: errOut,
		box:    render.Box{Width: width},
		now:    time.Now,
	}
}

// Run reads statements until EOF. Ctrl+C discards the statement being typed.
func (r *REPL) Run(ctx context.Context, in LineReader) error {
	var buf strings.Builder
	prompt := PrimaryPrompt

	for {
		in.SetPrompt(prompt)
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			prompt = PrimaryPrompt
			fmt.Fprintln(r.out)
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		if buf.Len() == 0 && isQuit(line) {
			return nil
		}

		buf.WriteString(line)
		buf.WriteByte('\n')

		res := scan(buf.String())
		for _, stmt := range res.Statements {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.Execute(ctx, stmt)
		}

		buf.Reset()
		if res.Pending != "" {
			buf.WriteString(res.Rest)
		}
		prompt = continuationPrompt(res.Pending)
	}
}

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimRight(strings.TrimSpace(line), ";")) {
	case "exit", "quit", `\q`:
		return true
	}
	return false
}

// Execute runs one statement and prints its result and summary line.
func (r *REPL) Execute(ctx context.Context, stmt string) {
	logging.FromContext(ctx).Debug("executing statement", "sql", stmt)

	start := r.now()
	res, err := Exec(ctx, r.db, stmt)
	elapsed := r.now().Sub(start)
	if err != nil {
		fmt.Fprintf(r.errOut, "ERROR: %v\n\n", err)
		return
	}

	if res.Query {
		if err := r.box.Render(r.out, res.Columns, res.Rows); err != nil {
			fmt.Fprintf(r.errOut, "ERROR: %v\n\n", err)
			return
		}
	}
	fmt.Fprintf(r.out, "%s\n\n", render.Summary(res.Query, res.RowsAffected, elapsed))
}

// NewLineReader returns a readline editor with history and table name
// completion when in is a terminal, and a plain line scanner otherwise.
// The returned func releases the reader.
func NewLineReader(ctx context.Context, db store.DB, in *os.File, out io.Writer) (LineReader, func() error, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return NewScanReader(in), func() error { return nil }, nil
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          PrimaryPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    newCompleter(ctx, db),
		InterruptPrompt: "^C",
		Stdin:           in,
		Stdout:          out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize REPL: %w", err)
	}
	return rl, rl.Close, nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".csvsql_history")
}

// newCompleter completes table names and the MySQL statements handled here.
func newCompleter(ctx context.Context, db store.DB) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	tables, err := db.Tables(ctx)
	if err == nil {
		for _, t := range tables {
			items = append(items, readline.PcItem(t))
		}
	}

	tableItems := func() []readline.PrefixCompleterInterface {
		out := make([]readline.PrefixCompleterInterface, len(tables))
		for i, t := range tables {
			out[i] = readline.PcItem(t)
		}
		return out
	}

	items = append(items,
		readline.PcItem("SELECT"),
		readline.PcItem("DESC", tableItems()...),
		readline.PcItem("DESCRIBE", tableItems()...),
		readline.PcItem("SHOW",
			readline.PcItem("TABLES"),
			readline.PcItem("CREATE", readline.PcItem("TABLE", tableItems()...)),
		),
		readline.PcItem("exit"),
	)
	return readline.NewPrefixCompleter(items...)
}

// scanReader reads piped input without prompts or line editing.
type scanReader struct {
	sc *bufio.Scanner
}

// NewScanReader returns a LineReader over r that ignores prompts.
func NewScanReader(r io.Reader) LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &scanReader{sc: sc}
}

func (s *scanReader) Readline() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanReader) SetPrompt(string) {}
