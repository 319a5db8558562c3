package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// load is one file named on the command line and the table it goes into.
type load struct {
	Path  string
	Table string
}

// loadList collects -A..-Z options in command-line order. pflag calls Set
// in argument order, so a --table seen just before a letter option names
// that option's table.
type loadList struct {
	loads   []load
	pending string
}

// check reports a --table that no letter option consumed.
func (l *loadList) check() error {
	if l.pending != "" {
		return fmt.Errorf("--table %q must be followed by a file option (-A..-Z)", l.pending)
	}
	return nil
}

// letterValue is the pflag.Value behind one of -A..-Z.
type letterValue struct {
	letter string
	list   *loadList
}

func (v *letterValue) String() string { return "" }

func (v *letterValue) Type() string { return "FILE" }

func (v *letterValue) Set(path string) error {
	table := v.letter
	if v.list.pending != "" {
		table, v.list.pending = v.list.pending, ""
	}
	v.list.loads = append(v.list.loads, load{Path: path, Table: table})
	return nil
}

// tableValue is the pflag.Value behind --table.
type tableValue struct {
	list *loadList
}

func (v *tableValue) String() string { return v.list.pending }

func (v *tableValue) Type() string { return "NAME" }

func (v *tableValue) Set(name string) error {
	if v.list.pending != "" {
		return fmt.Errorf("--table %q was not followed by a file option", v.list.pending)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("table name is empty")
	}
	v.list.pending = name
	return nil
}

// addLoadFlags registers --table and the 26 letter options on fs.
func addLoadFlags(fs *pflag.FlagSet, list *loadList) {
	fs.Var(&tableValue{list: list}, "table", "table name for the file option that follows")
	for c := 'A'; c <= 'Z'; c++ {
		letter := string(c)
		fs.VarP(&letterValue{letter: letter, list: list}, "load-"+strings.ToLower(letter), letter,
			"load FILE into table "+letter)
		fs.Lookup("load-" + strings.ToLower(letter)).Hidden = true
	}
}
