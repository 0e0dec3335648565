package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandy1219/ypf/internal/model"
)

var ErrWorkersDirMissing = errors.New("workers dir missing")

var descriptorExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadWorkers 读取目录下的 worker 描述文件, 文件名 (去掉扩展名) 即 worker 名称。
// 单个文件解析失败不影响其它文件, 错误合并后一起返回; 结果按名称排序。
func LoadWorkers(dir string) ([]model.WorkerConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, ErrWorkersDirMissing)
		}
		return nil, fmt.Errorf("read workers dir %s: %w", dir, err)
	}

	var (
		workers []model.WorkerConfig
		errs    []error
		seen    = map[string]string{}
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !descriptorExts[ext] {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if prev, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("worker %s declared twice (%s, %s)", name, prev, e.Name()))
			continue
		}
		w, err := loadWorker(filepath.Join(dir, e.Name()), ext)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		w.Name = name
		seen[name] = e.Name()
		workers = append(workers, w)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].Name < workers[j].Name })
	return workers, errors.Join(errs...)
}

func loadWorker(path, ext string) (model.WorkerConfig, error) {
	var w model.WorkerConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read %s: %w", path, err)
	}
	if ext == ".json" {
		err = decodeJSONWorker(data, &w)
	} else {
		err = yaml.Unmarshal(data, &w)
	}
	if err != nil {
		return w, fmt.Errorf("parse %s: %w", path, err)
	}
	return w, nil
}

// decodeJSONWorker json 没有 inline, 未知字段手动收进 Extra
func decodeJSONWorker(data []byte, w *model.WorkerConfig) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(data, w); err != nil {
		return err
	}
	for k, v := range raw {
		switch k {
		case "name", "status", "action", "crontab", "extra":
			continue
		}
		if w.Extra == nil {
			w.Extra = map[string]any{}
		}
		w.Extra[k] = v
	}
	return nil
}
