package network

import (
	"errors"
	"testing"

	"github.com/cwbudde/pipesizer/internal/network/networktest"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestModelInvariants checks cost determinism and the bounds invariant over
// generated assignments
func TestModelInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("cost is a pure function of the assignment", prop.ForAll(
		func(a, b, c int) bool {
			oracle := networktest.NewThreshold(0, 0, 0)
			m := newTestModel(t, oracle)
			x := Assignment{a, b, c}

			first, err := m.CostOf(x)
			if err != nil {
				return false
			}
			for i := 0; i < 3; i++ {
				again, err := m.CostOf(x)
				if err != nil || again != first {
					return false
				}
			}
			if err := m.SetAssignment(x); err != nil {
				return false
			}
			queries := oracle.Queries
			if m.Cost() != first || m.Cost() != first {
				return false
			}
			// Cost never consults the oracle
			return oracle.Queries == queries
		},
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
		gen.IntRange(0, 1),
	))

	properties.Property("out of bounds assignments are rejected", prop.ForAll(
		func(a, b, c int) bool {
			oracle := networktest.NewThreshold(0, 0, 0)
			m := newTestModel(t, oracle)
			x := Assignment{a, b, c}

			inBounds := a >= 0 && a <= 2 && b >= 0 && b <= 2 && c >= 0 && c <= 1
			err := m.SetAssignment(x)
			if inBounds {
				return err == nil
			}
			return errors.Is(err, ErrOutOfRange) && oracle.Applies == 0
		},
		gen.IntRange(-3, 5),
		gen.IntRange(-3, 5),
		gen.IntRange(-3, 5),
	))

	properties.TestingRun(t)
}
