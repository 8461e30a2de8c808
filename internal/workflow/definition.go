// Package workflow 是无副作用的状态机核心：只回答“某类实体从 S 到 S' 是否合法”，
// 不关心是谁发起的请求。每类实体贡献一张迁移表，控制流只有一份。
package workflow

import (
	"sort"
	"sync"

	"b2b_workflow/internal/model"
)

// Edge 是某类实体迁移表中的一条有向边。From 为 model.None 表示创建。
type Edge struct {
	From model.State
	To   model.State
}

func (e Edge) String() string {
	from := string(e.From)
	if from == "" {
		from = "(new)"
	}
	return from + "->" + string(e.To)
}

// Definition 描述一类实体的状态机。
//   - Transitions: from -> 可达的 to 集合，缺边即非法
//   - Required: 进入某状态时必须携带的附加字段
//   - Optional: 进入某状态时可以携带的附加字段
//   - Stamps: 进入某状态时由引擎写入当前时间的字段
type Definition struct {
	Kind        model.Kind
	Initial     model.State
	Transitions map[model.State][]model.State
	Required    map[model.State][]string
	Optional    map[model.State][]string
	Stamps      map[model.State][]string
}

// States 返回该实体出现在迁移表中的全部状态（已排序）。
func (d Definition) States() []model.State {
	seen := map[model.State]struct{}{d.Initial: {}}
	for from, tos := range d.Transitions {
		seen[from] = struct{}{}
		for _, to := range tos {
			seen[to] = struct{}{}
		}
	}
	out := make([]model.State, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edges 返回全部边，顺序稳定。
func (d Definition) Edges() []Edge {
	var out []Edge
	for _, from := range d.States() {
		for _, to := range d.Transitions[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Has 判断 from->to 是否在表中。
func (d Definition) Has(from, to model.State) bool {
	for _, s := range d.Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal 没有出边的已知状态即终态。
func (d Definition) IsTerminal(s model.State) bool {
	if len(d.Transitions[s]) > 0 {
		return false
	}
	for _, known := range d.States() {
		if known == s {
			return true
		}
	}
	return false
}

var (
	mu       sync.RWMutex
	registry = map[model.Kind]Definition{}
)

// Register 注册（或替换）一类实体的状态机。
func Register(d Definition) {
	mu.Lock()
	defer mu.Unlock()
	registry[d.Kind] = d
}

// Lookup 查询已注册的状态机。
func Lookup(kind model.Kind) (Definition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := registry[kind]
	return d, ok
}
