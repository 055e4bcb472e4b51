// Package ilp holds a linear program over binary decision variables and the
// contract for the engine that solves it. The engine is an opaque
// collaborator from the caller's point of view: it receives a linear
// objective and linear constraints and returns the best assignment found
// within a wall-clock budget.
package ilp

import (
	"errors"
	"fmt"
)

// Model and solve errors.
var (
	ErrUnknownVariable = errors.New("ilp: constraint references unknown variable")
	ErrInfeasible      = errors.New("ilp: problem is infeasible")
	ErrNoIncumbent     = errors.New("ilp: time limit reached with no feasible incumbent")
)

// VarID identifies a binary decision variable within one Problem.
type VarID int

// Sense is the direction of a linear constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "=="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is one coefficient-variable product in a linear expression.
type Term struct {
	Var  VarID
	Coef float64
}

// Constraint is a linear (in)equality over binary variables.
type Constraint struct {
	Terms []Term
	Sense Sense
	RHS   float64
}

// Problem is a minimization over binary variables: minimize c·x subject to
// linear constraints, x ∈ {0,1}ⁿ. Variables are created through NewVariable;
// objective coefficients accumulate, so several cost terms may contribute to
// the same variable.
type Problem struct {
	obj  []float64
	cons []Constraint
}

// NewProblem returns an empty problem.
func NewProblem() *Problem { return &Problem{} }

// NewVariable creates a binary variable with zero objective coefficient.
func (p *Problem) NewVariable() VarID {
	p.obj = append(p.obj, 0)
	return VarID(len(p.obj) - 1)
}

// NumVariables returns the number of variables created so far.
func (p *Problem) NumVariables() int { return len(p.obj) }

// NumConstraints returns the number of constraints added so far.
func (p *Problem) NumConstraints() int { return len(p.cons) }

// AddObjective adds coef to the objective coefficient of v.
func (p *Problem) AddObjective(v VarID, coef float64) error {
	if int(v) < 0 || int(v) >= len(p.obj) {
		return fmt.Errorf("%w: objective term on %d", ErrUnknownVariable, v)
	}
	p.obj[v] += coef
	return nil
}

// AddConstraint validates and stores a constraint. Referencing a variable
// that was never created is a fatal model error.
func (p *Problem) AddConstraint(c Constraint) error {
	for _, t := range c.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(p.obj) {
			return fmt.Errorf("%w: %d in constraint %d", ErrUnknownVariable, t.Var, len(p.cons))
		}
	}
	c.Terms = append([]Term(nil), c.Terms...)
	p.cons = append(p.cons, c)
	return nil
}

// Objective returns the objective coefficient of v.
func (p *Problem) Objective(v VarID) float64 { return p.obj[v] }

// satisfied reports whether constraint c holds for a full assignment.
func (c Constraint) satisfied(values []bool) bool {
	var lhs float64
	for _, t := range c.Terms {
		if values[t.Var] {
			lhs += t.Coef
		}
	}
	switch c.Sense {
	case LessEqual:
		return lhs <= c.RHS+feasTol
	case GreaterEqual:
		return lhs >= c.RHS-feasTol
	default:
		return lhs >= c.RHS-feasTol && lhs <= c.RHS+feasTol
	}
}

// Feasible reports whether a full assignment satisfies every constraint.
func (p *Problem) Feasible(values []bool) bool {
	for _, c := range p.cons {
		if !c.satisfied(values) {
			return false
		}
	}
	return true
}

// Evaluate returns the objective value of a full assignment.
func (p *Problem) Evaluate(values []bool) float64 {
	var obj float64
	for i, v := range values {
		if v {
			obj += p.obj[i]
		}
	}
	return obj
}
