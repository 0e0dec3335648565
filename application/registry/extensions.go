package registry

import (
	"log"
	"sync"

	"github.com/sandy1219/ypf/application/core"
)

// runtimeDepExtMap: target component -> 额外的运行时依赖, 在组件注册之后、StartAll 之前生效
var (
	runtimeDepExtMap = map[string][]string{}
	runtimeDepExtMu  sync.Mutex
)

// ExtendRuntimeDependencies 声明 target 在运行时额外依赖 deps (只影响启动/停止顺序, 不影响构建顺序)。
// 需要在 BuildAndRegisterAll 之前调用, 通常放在业务包的 init() 里。
func ExtendRuntimeDependencies(target string, deps ...string) {
	if target == "" || len(deps) == 0 {
		return
	}
	runtimeDepExtMu.Lock()
	defer runtimeDepExtMu.Unlock()
	runtimeDepExtMap[target] = append(runtimeDepExtMap[target], deps...)
}

// applyRuntimeDepExtensions 只补充已注册的依赖; 某个角色里没有构建的组件直接跳过。
// 声明保留, 同一进程内可以多次构建 (测试场景)。
func applyRuntimeDepExtensions(c *core.Container) {
	runtimeDepExtMu.Lock()
	defer runtimeDepExtMu.Unlock()
	for target, extra := range runtimeDepExtMap {
		comp, err := c.Resolve(target)
		if err != nil {
			continue
		}
		extender, ok := comp.(interface{ AddDependencies(...string) })
		if !ok {
			log.Printf("registry: component %s does not support AddDependencies; extension skipped", target)
			continue
		}
		var present []string
		for _, d := range extra {
			if _, err := c.Resolve(d); err == nil {
				present = append(present, d)
			}
		}
		if len(present) > 0 {
			extender.AddDependencies(present...)
		}
	}
}
