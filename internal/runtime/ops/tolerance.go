package ops

import "fmt"

// Tolerance defines acceptable numeric drift of an operator against its
// direct reference computation.
type Tolerance struct {
	Abs float64
	Rel float64
}

// KernelTolerances lists the parity targets checked by tests and by the
// verify command. Pure data movement must match exactly.
var KernelTolerances = map[string]Tolerance{
	"space_to_batch": {Abs: 0, Rel: 0},
	"batch_to_space": {Abs: 0, Rel: 0},
	"conv1d_nlc":     {Abs: 1e-5, Rel: 1e-5},
	"atrous_conv1d":  {Abs: 1e-4, Rel: 1e-4},
}

func KernelTolerance(name string) (Tolerance, error) {
	t, ok := KernelTolerances[name]
	if !ok {
		return Tolerance{}, fmt.Errorf("ops: no tolerance configured for kernel %q", name)
	}

	return t, nil
}

// Within reports whether got is within the tolerance of want.
func (t Tolerance) Within(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}

	ref := want
	if ref < 0 {
		ref = -ref
	}

	return diff <= t.Abs+t.Rel*ref
}
