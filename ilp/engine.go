package ilp

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// feasTol absorbs floating-point slop in constraint evaluation.
const feasTol = 1e-9

// deadlineCheckInterval is how many search nodes pass between wall-clock
// checks.
const deadlineCheckInterval = 256

// Status reports how the returned assignment relates to the true optimum.
type Status int

const (
	// StatusOptimal means the search completed and the assignment is a
	// proven optimum.
	StatusOptimal Status = iota
	// StatusTimeLimit means the wall-clock budget ran out first; the
	// assignment is the best feasible incumbent found so far.
	StatusTimeLimit
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusTimeLimit:
		return "time-limit"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is a feasible assignment together with its objective value.
type Result struct {
	Values    []bool
	Objective float64
	Status    Status
}

// Value returns the assignment of v.
func (r *Result) Value(v VarID) bool { return r.Values[v] }

// Engine solves a binary linear program within a wall-clock budget. A
// timeLimit of zero or less means no limit. Implementations must return the
// best feasible incumbent with StatusTimeLimit when the budget expires, and
// ErrNoIncumbent if no feasible assignment was found by then.
type Engine interface {
	Solve(ctx context.Context, p *Problem, timeLimit time.Duration) (*Result, error)
}

// BranchBound is the default engine: exact depth-first branch-and-bound over
// the binary variables, pruning on constraint residual bounds and on the
// optimistic objective of unassigned variables. Deterministic for a given
// problem.
type BranchBound struct{}

var _ Engine = BranchBound{}

// Solve runs the search. The empty assignment, when feasible, seeds the
// incumbent so a timeout can always return something for well-formed models.
func (BranchBound) Solve(ctx context.Context, p *Problem, timeLimit time.Duration) (*Result, error) {
	n := p.NumVariables()

	s := &bbSearch{
		p:      p,
		assign: make([]int8, n),
		conSum: make([]float64, p.NumConstraints()),
		conNeg: make([]float64, p.NumConstraints()),
		conPos: make([]float64, p.NumConstraints()),
		vcons:  make([][]conRef, n),
		ctx:    ctx,
	}
	if timeLimit > 0 {
		s.deadline = time.Now().Add(timeLimit)
		s.hasDeadline = true
	}
	for i := range s.assign {
		s.assign[i] = unassigned
	}
	for j, c := range p.cons {
		for _, t := range c.Terms {
			s.vcons[t.Var] = append(s.vcons[t.Var], conRef{con: j, coef: t.Coef})
			if t.Coef < 0 {
				s.conNeg[j] += t.Coef
			} else {
				s.conPos[j] += t.Coef
			}
		}
	}
	for i := 0; i < n; i++ {
		if p.obj[i] < 0 {
			s.negObjRem += p.obj[i]
		}
	}

	// A constraint with no terms is a constant; if it is violated the
	// problem is trivially infeasible.
	zero := make([]bool, n)
	for _, c := range p.cons {
		if len(c.Terms) == 0 && !c.satisfied(zero) {
			return nil, ErrInfeasible
		}
	}

	// Branch on variables with large objective magnitude first; ties keep
	// creation order.
	s.order = make([]int, n)
	for i := range s.order {
		s.order[i] = i
	}
	sort.SliceStable(s.order, func(a, b int) bool {
		oa, ob := p.obj[s.order[a]], p.obj[s.order[b]]
		if oa < 0 {
			oa = -oa
		}
		if ob < 0 {
			ob = -ob
		}
		return oa > ob
	})

	if p.Feasible(zero) {
		s.best = zero
		s.bestObj = 0
		s.haveBest = true
	}

	s.search(0)

	if s.timedOut {
		if !s.haveBest {
			return nil, ErrNoIncumbent
		}
		return &Result{Values: s.best, Objective: s.bestObj, Status: StatusTimeLimit}, nil
	}
	if !s.haveBest {
		return nil, ErrInfeasible
	}
	return &Result{Values: s.best, Objective: s.bestObj, Status: StatusOptimal}, nil
}

const unassigned int8 = -1

type conRef struct {
	con  int
	coef float64
}

type bbSearch struct {
	p      *Problem
	assign []int8
	order  []int
	vcons  [][]conRef

	// conSum is the contribution of assigned variables to each constraint;
	// conNeg/conPos bound what the unassigned variables can still add.
	conSum []float64
	conNeg []float64
	conPos []float64

	objNow    float64
	negObjRem float64 // sum of negative objective coefs over unassigned vars

	best     []bool
	bestObj  float64
	haveBest bool

	ctx         context.Context
	deadline    time.Time
	hasDeadline bool
	timedOut    bool
	nodes       int
}

func (s *bbSearch) search(depth int) {
	if s.timedOut {
		return
	}
	s.nodes++
	if s.nodes%deadlineCheckInterval == 0 {
		if s.hasDeadline && time.Now().After(s.deadline) {
			s.timedOut = true
			return
		}
		if s.ctx != nil && s.ctx.Err() != nil {
			s.timedOut = true
			return
		}
	}

	// No assignment extending this prefix can beat the incumbent.
	if s.haveBest && s.objNow+s.negObjRem >= s.bestObj-feasTol {
		return
	}

	if depth == len(s.order) {
		// All residuals are zero here, so the incremental checks were
		// exact and this assignment is feasible.
		values := make([]bool, len(s.assign))
		for i, a := range s.assign {
			values[i] = a == 1
		}
		s.best = values
		s.bestObj = s.objNow
		s.haveBest = true
		return
	}

	v := s.order[depth]
	first, second := int8(0), int8(1)
	if s.p.obj[v] < 0 {
		first, second = 1, 0
	}
	for _, val := range [2]int8{first, second} {
		if s.set(v, val) {
			s.search(depth + 1)
		}
		s.unset(v, val)
		if s.timedOut {
			return
		}
	}
}

// set assigns val to variable v, updating residuals, and reports whether the
// touched constraints can still be satisfied.
func (s *bbSearch) set(v int, val int8) bool {
	s.assign[v] = val
	obj := s.p.obj[v]
	if obj < 0 {
		s.negObjRem -= obj
	}
	if val == 1 {
		s.objNow += obj
	}
	ok := true
	for _, ref := range s.vcons[v] {
		if ref.coef < 0 {
			s.conNeg[ref.con] -= ref.coef
		} else {
			s.conPos[ref.con] -= ref.coef
		}
		if val == 1 {
			s.conSum[ref.con] += ref.coef
		}
		c := s.p.cons[ref.con]
		switch c.Sense {
		case LessEqual:
			if s.conSum[ref.con]+s.conNeg[ref.con] > c.RHS+feasTol {
				ok = false
			}
		case GreaterEqual:
			if s.conSum[ref.con]+s.conPos[ref.con] < c.RHS-feasTol {
				ok = false
			}
		case Equal:
			if s.conSum[ref.con]+s.conNeg[ref.con] > c.RHS+feasTol ||
				s.conSum[ref.con]+s.conPos[ref.con] < c.RHS-feasTol {
				ok = false
			}
		}
	}
	return ok
}

func (s *bbSearch) unset(v int, val int8) {
	s.assign[v] = unassigned
	obj := s.p.obj[v]
	if obj < 0 {
		s.negObjRem += obj
	}
	if val == 1 {
		s.objNow -= obj
	}
	for _, ref := range s.vcons[v] {
		if ref.coef < 0 {
			s.conNeg[ref.con] += ref.coef
		} else {
			s.conPos[ref.con] += ref.coef
		}
		if val == 1 {
			s.conSum[ref.con] -= ref.coef
		}
	}
}
