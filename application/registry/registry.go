package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sandy1219/ypf/application/config"
	"github.com/sandy1219/ypf/application/core"
)

// BuilderFunc returns (enabled, component, error). enabled=false skips registration.
type BuilderFunc func(cfg *config.AppConfig, c *core.Container) (bool, core.Component, error)

// Builder holds metadata.
type Builder struct {
	Name string
	Fn   BuilderFunc
	// Deps 构建期依赖: 这些 builder 先执行, 便于在 Fn 里 Resolve 它们
	Deps []string
}

var (
	buildersMu sync.Mutex
	builders   []*Builder
)

func findBuilder(name string) *Builder {
	for _, b := range builders {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Register registers a component builder with explicit name.
func Register(name string, fn BuilderFunc) {
	RegisterWithDeps(name, nil, fn)
}

// RegisterWithDeps 注册带构建期依赖的 builder
func RegisterWithDeps(name string, deps []string, fn BuilderFunc) {
	if name == "" {
		panic("registry: empty name in Register")
	}
	if fn == nil {
		panic("registry: nil builder for " + name)
	}
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if findBuilder(name) != nil {
		panic("registry: duplicate builder name " + name)
	}
	builders = append(builders, &Builder{Name: name, Fn: fn, Deps: deps})
}

// BuildAndRegisterAll 按构建期依赖拓扑排序后依次构建并注册组件, 最后应用运行时依赖扩展
func BuildAndRegisterAll(cfg *config.AppConfig, c *core.Container) error {
	buildersMu.Lock()
	list := make([]*Builder, len(builders))
	copy(list, builders)
	buildersMu.Unlock()

	ordered, err := topoSortBuilders(list)
	if err != nil {
		return err
	}
	for _, b := range ordered {
		enabled, comp, err := b.Fn(cfg, c)
		if err != nil {
			return fmt.Errorf("build %s failed: %w", b.Name, err)
		}
		if !enabled || comp == nil {
			continue
		}
		if err := c.Register(b.Name, comp); err != nil {
			return fmt.Errorf("register %s failed: %w", b.Name, err)
		}
	}
	applyRuntimeDepExtensions(c)
	return nil
}

// topoSortBuilders 同层按名称排序, 未注册的依赖忽略
func topoSortBuilders(list []*Builder) ([]*Builder, error) {
	nameMap := make(map[string]*Builder, len(list))
	inDeg := make(map[string]int, len(list))
	adj := map[string][]string{}
	for _, b := range list {
		nameMap[b.Name] = b
		inDeg[b.Name] = 0
	}
	for _, b := range list {
		for _, d := range b.Deps {
			if _, ok := nameMap[d]; !ok {
				continue
			}
			adj[d] = append(adj[d], b.Name)
			inDeg[b.Name]++
		}
	}
	var zero []string
	for n, d := range inDeg {
		if d == 0 {
			zero = append(zero, n)
		}
	}
	sort.Strings(zero)
	ordered := make([]*Builder, 0, len(list))
	for len(zero) > 0 {
		n := zero[0]
		zero = zero[1:]
		ordered = append(ordered, nameMap[n])
		for _, nxt := range adj[n] {
			inDeg[nxt]--
			if inDeg[nxt] == 0 {
				zero = append(zero, nxt)
			}
		}
		sort.Strings(zero)
	}
	if len(ordered) != len(nameMap) {
		var cyc []string
		for n, d := range inDeg {
			if d > 0 {
				cyc = append(cyc, n)
			}
		}
		sort.Strings(cyc)
		return nil, fmt.Errorf("registry: cyclic builder deps: %v", cyc)
	}
	return ordered, nil
}
