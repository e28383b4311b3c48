package container

import "slices"

// IIncrementalItem 支持增量更新的元素接口
// 功能：元素自己记录在数组中的下标，删除时无需查找
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类，可嵌入到实体结构体中
type IncrementalItemBase struct {
	index int
}

// Index 获取元素的索引
func (b *IncrementalItemBase) Index() int {
	return b.index
}

// SetIndex 设置元素的索引
func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组
// 功能：遍历用的活跃集合，Add/Remove先写入待处理列表，Prepare时统一生效
// 说明：同一帧内先Add后Remove同一元素时两者相互抵消，不会写入主数组
type IncrementalArray[T IIncrementalItem] struct {
	data   []T
	add    []T
	remove []T
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len 主数组长度（不含待处理的增删）
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Pending 待处理的增、删数量
func (a *IncrementalArray[T]) Pending() (add int, remove int) {
	return len(a.add), len(a.remove)
}

// Data 主数组
// 说明：返回的切片在下一次Prepare之前有效，调用方不应修改
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
// 说明：若该元素本帧刚被Add尚未生效，则直接撤销该Add
func (a *IncrementalArray[T]) Remove(value T) {
	for i, x := range a.add {
		if any(x) == any(value) {
			a.add = slices.Delete(a.add, i, i+1)
			return
		}
	}
	a.remove = append(a.remove, value)
}

// Prepare 执行增量操作
// 功能：统一执行所有待处理的添加和删除操作
// 算法说明：
// 1. 增 >= 删：新增元素依次填入被删除元素的位置，剩余新增元素追加到末尾
// 2. 删 > 增：新增元素先填入部分空位，其余空位从数组末尾搬移元素填充
// 3. 清空待处理列表
func (a *IncrementalArray[T]) Prepare() {
	if len(a.add) >= len(a.remove) {
		for i, x := range a.remove {
			ind := x.Index()
			a.data[ind] = a.add[i]
			a.data[ind].SetIndex(ind)
		}
		rest := a.add[len(a.remove):]
		for i, x := range rest {
			x.SetIndex(len(a.data) + i)
		}
		a.data = append(a.data, rest...)
	} else {
		for i, x := range a.add {
			ind := a.remove[i].Index()
			a.data[ind] = x
			a.data[ind].SetIndex(ind)
		}
		// 剩余待删除元素按下标从大到小处理，避免搬移来的元素本身也在待删除列表中
		holes := slices.Clone(a.remove[len(a.add):])
		slices.SortFunc(holes, func(x, y T) int { return y.Index() - x.Index() })
		for _, x := range holes {
			ind := x.Index()
			last := len(a.data) - 1
			if ind != last {
				a.data[ind] = a.data[last]
				a.data[ind].SetIndex(ind)
			}
			a.data = a.data[:last]
		}
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}
