package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var base = []string{"A", "B", "C", "D", "E"}

func TestReorderDownwardDragLandsAfterTarget(t *testing.T) {
	// lead B starts above target C
	got := Reorder(base, []string{"B", "D"}, "C", "B")
	assert.Equal(t, []string{"A", "C", "B", "D", "E"}, got)
}

func TestReorderUpwardDragLandsBeforeTarget(t *testing.T) {
	// lead D starts below target C
	got := Reorder(base, []string{"B", "D"}, "C", "D")
	assert.Equal(t, []string{"A", "B", "D", "C", "E"}, got)
}

func TestReorderKeepsRelativeOrderOfBlock(t *testing.T) {
	got := Reorder(base, []string{"E", "A"}, "C", "E")
	assert.Equal(t, []string{"B", "A", "E", "C", "D"}, got)
}

func TestReorderNoopWhenTargetIsMoving(t *testing.T) {
	got := Reorder(base, []string{"B", "C"}, "C", "B")
	assert.Equal(t, base, got)
}

func TestReorderNoopWhenTargetMissing(t *testing.T) {
	got := Reorder(base, []string{"B"}, "Z", "B")
	assert.Equal(t, base, got)
}

func TestReorderSingleRow(t *testing.T) {
	assert.Equal(t, []string{"B", "C", "D", "A", "E"}, Reorder(base, []string{"A"}, "D", "A"))
	assert.Equal(t, []string{"E", "A", "B", "C", "D"}, Reorder(base, []string{"E"}, "A", "E"))
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	seq := append([]string(nil), base...)
	_ = Reorder(seq, []string{"B", "D"}, "C", "B")
	assert.Equal(t, base, seq)
}

func TestArrangePutsUnindexedFirst(t *testing.T) {
	ids := []string{"new2", "new1", "C", "B", "A"}
	index := []string{"A", "C", "gone", "B"}
	assert.Equal(t, []string{"new2", "new1", "A", "C", "B"}, Arrange(ids, index))
}

func TestArrangeWithoutIndexKeepsDateOrder(t *testing.T) {
	ids := []string{"C", "B", "A"}
	assert.Equal(t, ids, Arrange(ids, nil))
}
