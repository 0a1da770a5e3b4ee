package nodes

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(ds []NodeDescriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Identifier
	}
	return out
}

func TestRankTieBreaks(t *testing.T) {
	base := func(id string) NodeDescriptor {
		d := descriptor(id, 2)
		d.Load.TotalSessions = 5
		return d
	}

	fewerActive := base("fewer-active")
	fewerActive.Load.ActiveSessions = 1

	fewerTotal := base("fewer-total")
	fewerTotal.Load.TotalSessions = 3

	lowerCPU := base("lower-cpu")
	lowerCPU.Load.CPULoad = 0.05

	lowerSystem := base("lower-system")
	lowerSystem.Load.SystemCPULoad = 0.1

	faster := base("faster")
	faster.LastResponseTimeMs = 10

	older := base("older")
	older.UptimeSeconds = 7200

	plainA := base("plain-a")
	plainB := base("plain-b")

	unreported := base("unreported")
	unreported.Load.ActiveSessions = -1

	in := []NodeDescriptor{unreported, plainB, plainA, older, faster, lowerSystem, lowerCPU, fewerTotal, fewerActive}
	got := ids(Rank(in))

	assert.Equal(t, []string{
		"fewer-active", "fewer-total", "lower-cpu", "lower-system",
		"faster", "older", "plain-a", "plain-b", "unreported",
	}, got)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := []NodeDescriptor{descriptor("b", 5), descriptor("a", 1)}
	_ = Rank(in)
	assert.Equal(t, []string{"b", "a"}, ids(in))
}

func TestRankIsIdempotentAndTotal(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	in := make([]NodeDescriptor, 0, 40)
	for i := range 40 {
		d := descriptor(string(rune('a'+i%26))+string(rune('0'+i/26)), r.IntN(4)-1)
		d.Load.CPULoad = float64(r.IntN(3)) / 10
		d.UptimeSeconds = int64(r.IntN(3))
		in = append(in, d)
	}

	once := Rank(in)
	twice := Rank(once)
	assert.Equal(t, ids(once), ids(twice))

	for _, a := range in {
		for _, b := range in {
			ab, ba := Compare(a, b), Compare(b, a)
			assert.Equal(t, -ab, ba, "antisymmetric %s/%s", a.Identifier, b.Identifier)
			if a.Identifier != b.Identifier {
				assert.NotZero(t, ab)
			}
		}
	}
}

func TestSelect(t *testing.T) {
	in := []NodeDescriptor{descriptor("c", 3), descriptor("a", 1), descriptor("b", 2)}

	assert.Equal(t, []string{"a", "b"}, ids(Select(in, 2)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Select(in, 10)))
	assert.Nil(t, Select(in, 0))
	assert.Nil(t, Select(in, -1))
	assert.Empty(t, Select(nil, 3))
}
