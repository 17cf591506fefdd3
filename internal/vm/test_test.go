package vm

import (
	"testing"

	"github.com/smoynes/elsie/internal/log"
)

// testHarness wires a *testing.T up as an io.Writer so a machine's logger writes through t.Log,
// and provides a constructor for machines configured with system privileges for white-box tests.
type testHarness struct {
	*testing.T
}

func NewTestHarness(t *testing.T) *testHarness {
	t.Parallel()

	return &testHarness{T: t}
}

func (t *testHarness) Make() *LC3 {
	logger := log.NewFormattedLogger(t)

	return New(WithLogger(logger), WithSystemPrivileges())
}

func (t *testHarness) Write(b []byte) (int, error) {
	s := string(b)
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}

	t.T.Log(s)

	return len(b), nil
}
