package sheet

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// functions lists the built-in functions with their arity. max < 0 means
// variadic.
var functions = map[string]struct{ min, max int }{
	"SUM": {1, -1},
	"MIN": {1, -1},
	"MAX": {1, -1},
	"IF":  {2, 3},
}

// evaluator evaluates one formula run. References are read through tc so
// they become dependencies of the entry's memo.
type evaluator struct {
	sheet *Sheet
	tc    *reactive.Tracker
}

func (ev *evaluator) eval(e expr) Value {
	switch e := e.(type) {
	case *numberLit:
		return Number(e.value)
	case *stringLit:
		return Text(e.value)
	case *refExpr:
		return ev.ref(e.name)
	case *unaryExpr:
		x := ev.eval(e.x)
		n, errv, ok := number(x)
		if !ok {
			return errv
		}
		if e.op == tMinus {
			n = -n
		}
		return Number(n)
	case *binaryExpr:
		return ev.binary(e)
	case *callExpr:
		return ev.call(e)
	default:
		return errorValue(CodeErr, fmt.Sprintf("unsupported expression %T", e))
	}
}

func (ev *evaluator) ref(name string) Value {
	// Every lookup depends on the set of names so that adding or removing
	// an entry re-evaluates formulas that mention it.
	ev.sheet.version.Get(ev.tc)

	ent, ok := ev.sheet.entries[name]
	if !ok {
		return errorValue(CodeRef, "unknown name "+name)
	}
	v, err := ent.value.Read(ev.tc)
	if err != nil {
		if errors.Is(err, reactive.ErrCyclicDependency) {
			ev.tc.Fail(err)
			return errorValue(CodeCycle, "circular reference through "+name)
		}
		return errorValue(CodeRef, err.Error())
	}
	return v
}

func (ev *evaluator) binary(e *binaryExpr) Value {
	left := ev.eval(e.left)
	if left.IsError() {
		return left
	}
	right := ev.eval(e.right)
	if right.IsError() {
		return right
	}

	switch e.op {
	case tEQ, tNE, tLT, tLE, tGT, tGE:
		return compare(e.op, left, right)
	}

	l, errv, ok := number(left)
	if !ok {
		return errv
	}
	r, errv, ok := number(right)
	if !ok {
		return errv
	}
	switch e.op {
	case tPlus:
		return Number(l + r)
	case tMinus:
		return Number(l - r)
	case tStar:
		return Number(l * r)
	case tSlash:
		if r == 0 {
			return errorValue(CodeErr, "division by zero")
		}
		return Number(l / r)
	}
	return errorValue(CodeErr, "unknown operator "+e.op.String())
}

func (ev *evaluator) call(e *callExpr) Value {
	if e.fn == "IF" {
		return ev.ifCall(e.args)
	}

	var (
		acc   float64
		count int
	)
	switch e.fn {
	case "MIN":
		acc = math.Inf(1)
	case "MAX":
		acc = math.Inf(-1)
	}
	for _, a := range e.args {
		v := ev.eval(a)
		if v.IsError() {
			return v
		}
		if v.Kind == KindEmpty {
			continue
		}
		n, errv, ok := number(v)
		if !ok {
			return errv
		}
		count++
		switch e.fn {
		case "SUM":
			acc += n
		case "MIN":
			acc = math.Min(acc, n)
		case "MAX":
			acc = math.Max(acc, n)
		}
	}
	if count == 0 {
		return Number(0)
	}
	return Number(acc)
}

// ifCall evaluates only the taken branch, so the entry depends on the
// condition and that branch alone.
func (ev *evaluator) ifCall(args []expr) Value {
	cond := ev.eval(args[0])
	if cond.IsError() {
		return cond
	}
	if truthy(cond) {
		return ev.eval(args[1])
	}
	if len(args) == 3 {
		return ev.eval(args[2])
	}
	return Value{}
}

func truthy(v Value) bool {
	switch v.Kind {
	case KindNumber:
		return v.Num != 0
	case KindText:
		return v.Text != ""
	default:
		return false
	}
}

// number coerces v for arithmetic. Empty counts as 0.
func number(v Value) (float64, Value, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, Value{}, true
	case KindEmpty:
		return 0, Value{}, true
	case KindError:
		return 0, v, false
	default:
		return 0, errorValue(CodeErr, fmt.Sprintf("%q is not a number", v.Text)), false
	}
}

func compare(op tokenKind, a, b Value) Value {
	var c int
	switch {
	case a.Kind == KindText && b.Kind == KindText:
		c = strings.Compare(a.Text, b.Text)
	case a.Kind != KindText && b.Kind != KindText:
		x, _, _ := number(a)
		y, _, _ := number(b)
		switch {
		case x < y:
			c = -1
		case x > y:
			c = 1
		}
	default:
		// Mixed kinds only compare for (in)equality.
		switch op {
		case tEQ:
			return Number(0)
		case tNE:
			return Number(1)
		}
		return errorValue(CodeErr, "cannot order text and numbers")
	}

	var ok bool
	switch op {
	case tEQ:
		ok = c == 0
	case tNE:
		ok = c != 0
	case tLT:
		ok = c < 0
	case tLE:
		ok = c <= 0
	case tGT:
		ok = c > 0
	case tGE:
		ok = c >= 0
	}
	if ok {
		return Number(1)
	}
	return Number(0)
}
