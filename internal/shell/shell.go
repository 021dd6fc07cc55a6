// Package shell provides the interactive console. Interactive sessions
// always roll back; the console is for inspection, not mutation.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/env"
	"scriptor/internal/script"
	"scriptor/pkg/logger"
)

// Interface names a console flavor.
type Interface string

const (
	InterfaceLua Interface = "lua"
	InterfaceSQL Interface = "sql"
)

// IsTerminal reports whether f is attached to a terminal. Decides both
// whether stdin carries a script and whether a console should open.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Choose resolves the preferred console flavor into a try order. Empty
// preference means the default order; an unknown name is a usage error.
func Choose(preferred string) ([]Interface, error) {
	switch Interface(strings.ToLower(preferred)) {
	case "":
		return []Interface{InterfaceLua, InterfaceSQL}, nil
	case InterfaceLua:
		return []Interface{InterfaceLua, InterfaceSQL}, nil
	case InterfaceSQL:
		return []Interface{InterfaceSQL, InterfaceLua}, nil
	default:
		return nil, apperror.NewValidation(
			fmt.Sprintf("unknown shell interface %q, expected lua or sql", preferred))
	}
}

// pick walks the try order and returns the first flavor that can open
// against the handle. SQL needs a database; Lua runs without one.
func pick(e *env.Env, order []Interface) (Interface, error) {
	if len(order) == 0 {
		order = []Interface{InterfaceLua}
	}
	for _, iface := range order {
		if iface == InterfaceSQL && e == nil {
			continue
		}
		return iface, nil
	}
	return "", apperror.NewValidation("sql console needs a database")
}

// Shell reads statements from in and writes results to out.
type Shell struct {
	in  io.Reader
	out io.Writer
	log *logger.Logger
}

// New builds a Shell over the given streams.
func New(in io.Reader, out io.Writer) *Shell {
	return &Shell{
		in:  in,
		out: out,
		log: logger.Default().WithComponent("shell"),
	}
}

// Interact runs a console session against the handle. Returns when input
// is exhausted or the user quits. Errors inside a statement are printed
// and the session continues; only stream errors abort it.
func (s *Shell) Interact(ctx context.Context, e *env.Env, order []Interface) error {
	iface, err := pick(e, order)
	if err != nil {
		return err
	}

	database := "(none)"
	if e != nil {
		database = e.Database()
	}
	fmt.Fprintf(s.out, "connected to %s, %s console; changes roll back on exit\n", database, iface)

	var eng *script.Engine
	if iface == InterfaceLua {
		eng = script.New(ctx, e, nil)
	}

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprintf(s.out, "%s> ", iface)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit", "\\q":
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch iface {
		case InterfaceLua:
			err = eng.RunSource(line)
		case InterfaceSQL:
			err = s.execSQL(ctx, e, line)
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// execSQL runs one statement inside the session's transaction and prints
// the result table.
func (s *Shell) execSQL(ctx context.Context, e *env.Env, stmt string) error {
	if e == nil {
		return apperror.NewValidation("sql console needs a database")
	}
	rows, err := e.Tx().Query(ctx, stmt)
	if err != nil {
		return err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if len(fields) > 0 {
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		fmt.Fprintln(s.out, strings.Join(names, "\t"))
	}

	count := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(s.out, strings.Join(cells, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(fields) == 0 {
		fmt.Fprintln(s.out, rows.CommandTag().String())
	} else {
		fmt.Fprintf(s.out, "(%d rows)\n", count)
	}
	return nil
}
