package lifecycle

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"scriptor/internal/core/appctx"
)

// Policy carries the caller-supplied finalization flags for one unit of
// work. The effective outcome also depends on whether the work errored;
// that flag is computed, never supplied.
type Policy struct {
	// Rollback requests discarding the transaction even on success.
	Rollback bool

	// Interactive marks a REPL-driven unit of work. Always forces rollback,
	// overriding everything else including an explicit commit request.
	Interactive bool
}

// Interactive returns the policy used by interactive sessions: the
// interactive flag pinned true regardless of the rollback flag.
func Interactive(p Policy) Policy {
	p.Interactive = true
	return p
}

// wantsRollback reports whether the policy alone (no error considered)
// requests a rollback.
func (p Policy) wantsRollback() bool {
	return p.Interactive || p.Rollback
}

// Guard is an optional deployment-configured commit veto: a CEL expression
// over the unit of work's attributes, consulted only when the outcome would
// otherwise be commit. It can force a rollback but never a commit, so the
// built-in override rules stay intact.
type Guard struct {
	expr string
	prg  cel.Program
}

// NewGuard compiles the expression. The expression must evaluate to bool;
// true permits the commit.
func NewGuard(expr string) (*Guard, error) {
	celEnv, err := cel.NewEnv(
		cel.Variable("database", cel.StringType),
		cel.Variable("uid", cel.IntType),
		cel.Variable("login", cel.StringType),
		cel.Variable("interactive", cel.BoolType),
		cel.Variable("rollback", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("build guard env: %w", err)
	}

	ast, iss := celEnv.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile commit guard: %w", iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("commit guard must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := celEnv.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("plan commit guard: %w", err)
	}
	return &Guard{expr: expr, prg: prg}, nil
}

// AllowCommit evaluates the guard. Evaluation errors deny the commit; the
// safe direction is always rollback.
func (g *Guard) AllowCommit(ctx context.Context, database string, id appctx.Identity, p Policy) (bool, error) {
	out, _, err := g.prg.ContextEval(ctx, map[string]any{
		"database":    database,
		"uid":         id.UserID,
		"login":       id.Login,
		"interactive": p.Interactive,
		"rollback":    p.Rollback,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate commit guard %q: %w", g.expr, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("commit guard %q returned %T", g.expr, out.Value())
	}
	return allowed, nil
}
