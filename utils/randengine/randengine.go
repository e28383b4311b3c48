// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：为仿真提供可复现的随机数
// 说明：仿真为单线程逐帧推进，不提供线程安全版本
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// PTrue 以指定概率返回true
// 功能：根据给定概率返回布尔值
// 参数：p-返回true的概率（0.0到1.0之间）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 在[min, max)内均匀采样
// 说明：max<=min时直接返回min
func (e *Engine) Uniform(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + (max-min)*e.Float64()
}

// Pick 均匀随机选出一个下标
// 说明：n<=0时返回-1
func (e *Engine) Pick(n int) int {
	if n <= 0 {
		return -1
	}
	return e.Intn(n)
}

// ShuffleSlice 原地打乱切片
func ShuffleSlice[T any](e *Engine, s []T) {
	e.Shuffle(len(s), func(i, j int) {
		s[i], s[j] = s[j], s[i]
	})
}
