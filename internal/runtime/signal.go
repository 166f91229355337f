package runtime

// Signal is the control-flow outcome of evaluating a node. Signals
// replace exceptions: every construct that can intercept control flow
// inspects the signal of its children and either consumes it or lets
// it propagate.
type Signal int

const (
	SigNone     Signal = iota // normal completion
	SigLeave                  // leave a block
	SigBreak                  // break out of a loop
	SigContinue               // next loop iteration
	SigReturn                 // return from a function
)

var signalNames = map[Signal]string{
	SigNone:     "normal",
	SigLeave:    "leave",
	SigBreak:    "break",
	SigContinue: "continue",
	SigReturn:   "return",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return "signal?"
}

// Result pairs a value with the signal it rides on. For SigNone the
// value is the node's ordinary result; for the others it is the
// carried payload, unset when the signal gave none.
type Result struct {
	Sig   Signal
	Label string
	Val   Value
}

// normal wraps a value in a plain completion result.
func normal(v Value) Result {
	return Result{Sig: SigNone, Val: v}
}
