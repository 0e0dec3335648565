// Package autowire 基于 struct tag 的轻量依赖注入。
//
// 支持 `infra:"dep:<component_name>"` 以及可选依赖 `infra:"dep:<component_name>?"`。
// 字段必须导出; 注入成功后会把依赖名追加到组件的运行时依赖, 保证启动/停止顺序。
package autowire

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/sandy1219/ypf/application/core"
)

const tagKey = "infra"

type runtimeDepAdder interface {
	AddDependencies(...string)
}

// InjectAll 对容器内所有组件执行注入
func InjectAll(c *core.Container) error {
	registered := c.ListRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		if err := Inject(c, registered[name]); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("autowire errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// parseTag returns the component name and whether it is optional.
func parseTag(tag string) (string, bool) {
	if !strings.HasPrefix(tag, "dep:") {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(tag, "dep:"))
	optional := strings.HasSuffix(name, "?")
	return strings.TrimSuffix(name, "?"), optional
}

// Inject 对单个组件执行注入
func Inject(c *core.Container, comp core.Component) error {
	if comp == nil {
		return nil
	}
	val := reflect.ValueOf(comp)
	if val.Kind() != reflect.Ptr {
		return nil
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return nil
	}
	adder, _ := comp.(runtimeDepAdder)

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name, optional := parseTag(field.Tag.Get(tagKey))
		if name == "" {
			continue
		}
		resolved, err := c.Resolve(name)
		if err != nil {
			if optional {
				continue
			}
			return fmt.Errorf("resolve %s failed: %w", name, err)
		}
		if err := assignValue(val.Field(i), resolved); err != nil {
			return fmt.Errorf("assign %s -> field %s failed: %w", name, field.Name, err)
		}
		if adder != nil {
			adder.AddDependencies(name)
		}
	}
	return nil
}

func assignValue(dst reflect.Value, src interface{}) error {
	if !dst.CanSet() {
		return fmt.Errorf("destination not settable")
	}
	sv := reflect.ValueOf(src)
	if dst.Kind() == reflect.Interface {
		if sv.Type().Implements(dst.Type()) {
			dst.Set(sv)
			return nil
		}
		return fmt.Errorf("%s does not implement %s", sv.Type(), dst.Type())
	}
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	return fmt.Errorf("incompatible types: %s -> %s", sv.Type(), dst.Type())
}
