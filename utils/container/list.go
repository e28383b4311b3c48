package container

import "fmt"

// IHasVAndLength 具有速度和长度属性的接口
// 功能：车辆作为链表元素时用于跟驰计算的关键信息
type IHasVAndLength interface {
	V() float64      // 获取速度
	Length() float64 // 获取长度
}

// ListNode 按S升序排列的双向链表节点
// 功能：S为元素在路径上的弧长位置，Value为元素本身，Extra为附加信息
type ListNode[T IHasVAndLength, E any] struct {
	parent     *List[T, E]
	prev, next *ListNode[T, E]
	S          float64 // 键值（弧长位置）
	Value      T
	Extra      E
}

func (n *ListNode[T, E]) String() string {
	return fmt.Sprintf("Node{Key:%v, Value:%+v, Extra:%+v}", n.S, n.Value, n.Extra)
}

// Prev 后方（S更小）的节点
func (n *ListNode[T, E]) Prev() *ListNode[T, E] {
	return n.prev
}

// Next 前方（S更大）的节点
func (n *ListNode[T, E]) Next() *ListNode[T, E] {
	return n.next
}

// Parent 节点所在链表，不在链表中时为nil
func (n *ListNode[T, E]) Parent() *List[T, E] {
	return n.parent
}

// V 节点值的速度
func (n *ListNode[T, E]) V() float64 {
	return n.Value.V()
}

// L 节点值的长度
func (n *ListNode[T, E]) L() float64 {
	return n.Value.Length()
}

// Rear 节点值的尾部位置（S减去长度）
func (n *ListNode[T, E]) Rear() float64 {
	return n.S - n.Value.Length()
}

// InsertBefore 在节点前插入新节点
func (n *ListNode[T, E]) InsertBefore(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter 在节点后插入新节点
func (n *ListNode[T, E]) InsertAfter(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List 按S升序排列的双向链表
// 功能：维护一条路径上的车辆顺序，head为最靠近入口的车辆，tail为最靠近终点的车辆
// 说明：路径上不允许超车，S的更新不会破坏顺序，因此只有插入时需要查找位置
type List[T IHasVAndLength, E any] struct {
	ID         string
	head, tail *ListNode[T, E]
	length     int
}

func (l *List[T, E]) String() string {
	return fmt.Sprintf("List{ID:%v}", l.ID)
}

// Keys 所有节点的键值（升序）
func (l *List[T, E]) Keys() []float64 {
	keys := make([]float64, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		keys = append(keys, node.S)
	}
	return keys
}

// Values 所有节点的值（按S升序）
func (l *List[T, E]) Values() []T {
	values := make([]T, 0, l.length)
	for node := l.head; node != nil; node = node.next {
		values = append(values, node.Value)
	}
	return values
}

// Len 链表长度
func (l *List[T, E]) Len() int {
	return l.length
}

// PushFront 向链表头部插入节点
func (l *List[T, E]) PushFront(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("push front node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.head == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		l.head.InsertBefore(add)
	}
}

// PushBack 向链表尾部插入节点
func (l *List[T, E]) PushBack(add *ListNode[T, E]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		l.tail.InsertAfter(add)
	}
}

// Insert 按S有序插入节点
// 功能：找到第一个S不小于add.S的节点并插到其前面，S相同时新节点排在后方
func (l *List[T, E]) Insert(add *ListNode[T, E]) {
	node := l.head
	for node != nil && node.S < add.S {
		node = node.next
	}
	if node == nil {
		l.PushBack(add)
	} else {
		node.InsertBefore(add)
	}
}

// Remove 从链表中移除节点
func (l *List[T, E]) Remove(node *ListNode[T, E]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// First 头部节点（S最小），空链表返回nil
func (l *List[T, E]) First() *ListNode[T, E] {
	return l.head
}

// Last 尾部节点（S最大），空链表返回nil
func (l *List[T, E]) Last() *ListNode[T, E] {
	return l.tail
}

// IsSorted 检查链表是否保持S升序
func (l *List[T, E]) IsSorted() bool {
	for node := l.head; node != nil && node.next != nil; node = node.next {
		if node.S > node.next.S {
			return false
		}
	}
	return true
}
