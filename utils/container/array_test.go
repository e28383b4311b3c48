package container_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
)

type item struct {
	container.IncrementalItemBase
	id int
}

func ids(a *container.IncrementalArray[*item]) []int {
	return lo.Map(a.Data(), func(x *item, _ int) int { return x.id })
}

func checkIndexes(t *testing.T, a *container.IncrementalArray[*item]) {
	for i, x := range a.Data() {
		assert.Equal(t, i, x.Index())
	}
}

func TestIncrementalArrayAddRemove(t *testing.T) {
	a := container.NewIncrementalArray[*item]()
	items := lo.Map(lo.Range(5), func(i int, _ int) *item { return &item{id: i} })
	for _, x := range items {
		a.Add(x)
	}
	assert.Equal(t, 0, a.Len())
	a.Prepare()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids(a))
	checkIndexes(t, a)

	// 删 > 增
	a.Remove(items[1])
	a.Remove(items[4])
	a.Remove(items[3])
	a.Prepare()
	assert.ElementsMatch(t, []int{0, 2}, ids(a))
	checkIndexes(t, a)

	// 增 >= 删
	a.Remove(items[0])
	a.Add(items[1])
	a.Add(items[3])
	a.Prepare()
	assert.ElementsMatch(t, []int{1, 2, 3}, ids(a))
	checkIndexes(t, a)
}

func TestIncrementalArrayCancelPendingAdd(t *testing.T) {
	a := container.NewIncrementalArray[*item]()
	x := &item{id: 7}
	a.Add(x)
	a.Remove(x)
	add, remove := a.Pending()
	assert.Equal(t, 0, add)
	assert.Equal(t, 0, remove)
	a.Prepare()
	assert.Equal(t, 0, a.Len())
}
