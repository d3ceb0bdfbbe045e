package rowgen

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// programCache memoizes compiled expr programs by formula text, standing in
// for the per-thread template cache in spec §4.2 ("templates are cached per
// thread by expression text to amortize compilation"): compiled *vm.Program
// values are safe for concurrent Run calls, so a single shared cache keyed
// by formula serves every generator goroutine without recompiling.
var programCache sync.Map // map[string]*vm.Program

func compileFormula(formula string) (*vm.Program, error) {
	if cached, ok := programCache.Load(formula); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(formula, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, errors.Wrapf(err, "rowgen: compiling expression formula %q", formula)
	}
	actual, _ := programCache.LoadOrStore(formula, program)
	return actual.(*vm.Program), nil
}

// ExpressionGenerator evaluates a scripted formula per row, keyed to the
// current call index, and coerces the scalar result to the column's target
// type (spec §4.2 "Expression generator").
type ExpressionGenerator struct {
	tag     model.Tag
	program *vm.Program
	index   int64
}

// NewExpressionGenerator compiles cfg.Formula and builds a generator for
// cfg.Type. The formula's environment exposes "i" as the current call index
// (0-based, incrementing once per generated cell).
func NewExpressionGenerator(cfg model.ColumnConfig) (*ExpressionGenerator, error) {
	program, err := compileFormula(cfg.Formula)
	if err != nil {
		return nil, err
	}
	return &ExpressionGenerator{tag: cfg.Type, program: program}, nil
}

// GenerateOne implements ColumnGenerator. It fails loudly (returns an
// error) rather than silently nulling out a result that cannot be coerced
// to the column's target type, per spec §4.2.
func (g *ExpressionGenerator) GenerateOne() (model.Cell, error) {
	env := map[string]interface{}{"i": g.index}
	g.index++

	result, err := expr.Run(g.program, env)
	if err != nil {
		return model.Cell{}, errors.Wrap(err, "rowgen: evaluating expression formula")
	}
	return coerceScalar(g.tag, result)
}

// GenerateMany implements ColumnGenerator.
func (g *ExpressionGenerator) GenerateMany(n int) ([]model.Cell, error) {
	return generateManyDefault(g, n)
}
