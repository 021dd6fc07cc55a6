// Package script embeds a Lua interpreter and exposes the environment
// handle to scripts. One Engine serves one unit of work; the script runs
// inside the surrounding transaction and never finalizes it.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/go-lua"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/env"
	"scriptor/internal/core/model"
	"scriptor/pkg/logger"
)

// Engine runs Lua sources against an environment handle.
type Engine struct {
	state *lua.State
	ctx   context.Context
	env   *env.Env
	log   *logger.Logger
}

// New builds an Engine bound to e. A nil handle is allowed; database
// functions then raise a Lua error when called. args become the script's
// arg table, with args[0] conventionally the script path.
func New(ctx context.Context, e *env.Env, args []string) *Engine {
	eng := &Engine{
		state: lua.NewState(),
		ctx:   ctx,
		env:   e,
		log:   logger.FromContext(ctx).WithComponent("script"),
	}
	lua.OpenLibraries(eng.state)
	eng.registerEnv()
	eng.registerArgs(args)
	return eng
}

// RunFile loads and executes a script file.
func (e *Engine) RunFile(path string) error {
	if err := lua.LoadFile(e.state, path, ""); err != nil {
		return apperror.NewBusiness(fmt.Errorf("load %s: %w", path, err))
	}
	return e.call()
}

// RunSource executes an in-memory chunk, typically stdin.
func (e *Engine) RunSource(source string) error {
	if err := lua.LoadString(e.state, source); err != nil {
		return apperror.NewBusiness(fmt.Errorf("load script: %w", err))
	}
	return e.call()
}

func (e *Engine) call() error {
	if err := e.state.ProtectedCall(0, 0, 0); err != nil {
		return apperror.NewBusiness(err)
	}
	return nil
}

// registerEnv installs the env table. All functions go through the
// accessor layer so registry and transaction semantics hold for scripts
// exactly as for API handlers.
func (e *Engine) registerEnv() {
	l := e.state
	l.NewTable()

	set := func(name string, fn lua.Function) {
		l.PushGoFunction(fn)
		l.SetField(-2, name)
	}

	set("database", func(l *lua.State) int {
		if e.env == nil {
			l.PushNil()
			return 1
		}
		l.PushString(e.env.Database())
		return 1
	})
	set("uid", func(l *lua.State) int {
		if e.env == nil {
			l.PushNil()
			return 1
		}
		l.PushInteger(int(e.env.Identity().UserID))
		return 1
	})
	set("log", func(l *lua.State) int {
		msg := lua.CheckString(l, 1)
		e.log.Infow(msg)
		return 0
	})
	set("search", e.search)
	set("read", e.read)
	set("write", e.write)
	set("delete", e.delete)

	l.SetGlobal("env")
}

func (e *Engine) registerArgs(args []string) {
	l := e.state
	l.CreateTable(len(args), 1)
	for i, a := range args {
		l.PushString(a)
		l.RawSetInt(-2, i)
	}
	l.SetGlobal("arg")
}

func (e *Engine) accessor(l *lua.State) model.Accessor {
	name := lua.CheckString(l, 1)
	if e.env == nil {
		lua.Errorf(l, "no database bound to this run")
		panic("unreachable")
	}
	acc, err := e.env.Lookup(name)
	if err != nil {
		lua.Errorf(l, "unknown object %q", name)
		panic("unreachable")
	}
	return acc
}

// search(object, filters) -> array of records. Filters is a table of
// field=value pairs, matched for equality.
func (e *Engine) search(l *lua.State) int {
	acc := e.accessor(l)
	var filters []model.Filter
	if l.TypeOf(2) == lua.TypeTable {
		for field, value := range tableToMap(l, 2) {
			filters = append(filters, model.Filter{Field: field, Op: model.OpEqual, Value: value})
		}
	}
	records, err := acc.Search(e.ctx, filters)
	if err != nil {
		lua.Errorf(l, "search: %s", err.Error())
	}
	l.CreateTable(len(records), 0)
	for i, rec := range records {
		pushRecord(l, rec)
		l.RawSetInt(-2, i+1)
	}
	return 1
}

// read(object, key) -> record or nil when absent.
func (e *Engine) read(l *lua.State) int {
	acc := e.accessor(l)
	key := lua.CheckString(l, 2)
	rec, err := acc.Read(e.ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			l.PushNil()
			return 1
		}
		lua.Errorf(l, "read: %s", err.Error())
	}
	pushRecord(l, rec)
	return 1
}

// write(object, key, record) applies an upsert inside the open transaction.
func (e *Engine) write(l *lua.State) int {
	acc := e.accessor(l)
	key := lua.CheckString(l, 2)
	lua.CheckType(l, 3, lua.TypeTable)
	rec := model.Record(tableToMap(l, 3))
	if err := acc.Write(e.ctx, key, rec); err != nil {
		lua.Errorf(l, "write: %s", err.Error())
	}
	return 0
}

func (e *Engine) delete(l *lua.State) int {
	acc := e.accessor(l)
	key := lua.CheckString(l, 2)
	if err := acc.Delete(e.ctx, key); err != nil {
		lua.Errorf(l, "delete: %s", err.Error())
	}
	return 0
}

func pushRecord(l *lua.State, rec model.Record) {
	l.CreateTable(0, len(rec))
	for k, v := range rec {
		pushValue(l, v)
		l.SetField(-2, k)
	}
}

func pushValue(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case string:
		l.PushString(val)
	case bool:
		l.PushBoolean(val)
	case int:
		l.PushInteger(val)
	case int64:
		l.PushInteger(int(val))
	case float64:
		l.PushNumber(val)
	case time.Time:
		l.PushString(val.UTC().Format(time.RFC3339))
	default:
		l.PushString(fmt.Sprintf("%v", val))
	}
}

func tableToMap(l *lua.State, index int) map[string]any {
	out := map[string]any{}
	if l.TypeOf(index) != lua.TypeTable {
		return out
	}
	index = l.AbsIndex(index)
	l.PushNil()
	for l.Next(index) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			out[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return out
}

func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeString:
		value, _ := l.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := l.ToNumber(index)
		return value
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	default:
		return nil
	}
}
