// Package api master 对外的 HTTP 接口。所有路由都经过 lifecycle router 的 Request
// 中间件, 在某个 worker 的 loop 上执行。
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sandy1219/ypf/application/components/http_server"
	appconsts "github.com/sandy1219/ypf/application/consts"
	"github.com/sandy1219/ypf/application/core"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/crontab"
	"github.com/sandy1219/ypf/internal/dispatch"
	"github.com/sandy1219/ypf/internal/engine"
	"github.com/sandy1219/ypf/internal/handler"
	"github.com/sandy1219/ypf/internal/lifecycle"
	"github.com/sandy1219/ypf/internal/model"
	"github.com/sandy1219/ypf/internal/store"
	"github.com/sandy1219/ypf/internal/supervisor"
)

const maxBodyBytes = 1 << 20

type Controller struct {
	*core.BaseComponent

	Engine     *engine.Server         `infra:"dep:engine"`
	Router     *lifecycle.Router      `infra:"dep:lifecycle_router"`
	Dispatcher *dispatch.Dispatcher   `infra:"dep:dispatcher"`
	Handlers   *handler.Registry      `infra:"dep:handler_registry"`
	Store      store.Store            `infra:"dep:state_store"`
	Supervisor *supervisor.Supervisor `infra:"dep:supervisor?"`
}

func NewController() *Controller {
	return &Controller{
		BaseComponent: core.NewBaseComponent(consts.COMP_API_CONTROLLER, appconsts.COMPONENT_LOGGING),
	}
}

func init() {
	http_server.RegisterRoutes(func(r chi.Router, c *core.Container) error {
		ctrl, err := core.ResolveAs[*Controller](c, consts.COMP_API_CONTROLLER)
		if err != nil {
			return fmt.Errorf("resolve api controller: %w", err)
		}
		ctrl.Mount(r)
		return nil
	})
}

// Mount 注册全部路由
func (c *Controller) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(c.Router.Request(c.Engine))
		r.Post("/actions/{action}", c.runAction)
		r.Post("/tasks/{func}", c.submitTask)
		r.Post("/jobs", c.createJob)
		r.Get("/jobs/{key}", c.getJob)
		r.Get("/status", c.status)
	})
}

type taskRequest struct {
	Args     map[string]any `json:"args"`
	Callback string         `json:"callback"`
	Thread   *model.Thread  `json:"thread"`
}

type jobRequest struct {
	Func     string           `json:"func"`
	Args     []map[string]any `json:"args"`
	Callback string           `json:"callback"`
}

// runAction 同步执行一个 action
func (c *Controller) runAction(w http.ResponseWriter, r *http.Request) {
	var args map[string]any
	if err := decodeBody(r, &args); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := c.Handlers.Dispatch(r.Context(), chi.URLParam(r, "action"), args)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, handler.ErrUnknownHandler) {
			code = http.StatusNotFound
		}
		writeErr(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (c *Controller) submitTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := c.Dispatcher.Submit(r.Context(), chi.URLParam(r, "func"), req.Args, req.Callback, req.Thread)
	if err != nil {
		writeErr(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"task_id": id})
}

func (c *Controller) createJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	key, ids, err := c.Dispatcher.FanOut(r.Context(), req.Func, req.Args, req.Callback)
	if err != nil {
		writeJSON(w, statusOf(err), map[string]any{"error": err.Error(), "key": key, "task_ids": ids})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"key": key, "task_ids": ids})
}

func (c *Controller) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := c.Dispatcher.Job(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeErr(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": job.Results, "tasks": job.Tasks, "done": job.Done()})
}

func (c *Controller) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := supervisor.LoadRecords(ctx, c.Store)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []model.ProcessRecord{}
	}
	queue, ready, err := crontab.LoadSets(ctx, c.Store)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	titles := c.Engine.Titles()
	processes := make([]map[string]any, 0, len(titles))
	for _, slot := range engine.SortedSlots(titles) {
		processes = append(processes, map[string]any{"slot": slotName(slot), "title": titles[slot]})
	}

	var workers []string
	if c.Supervisor != nil {
		for _, w := range c.Supervisor.Workers() {
			workers = append(workers, w.Name)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"master_pid": c.Engine.MasterPID(),
		"processes":  processes,
		"children":   records,
		"workers":    workers,
		"cron": map[string]any{
			"queue": setNames(queue),
			"ready": setNames(ready),
		},
		"handlers": c.Handlers.Names(),
	})
}

func slotName(slot int) string {
	switch slot {
	case engine.MasterSlot:
		return "master"
	case engine.ManagerSlot:
		return "manager"
	default:
		return strconv.Itoa(slot)
	}
}

func setNames(set model.CronSet) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// decodeBody 空 body 视为未提供参数
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, handler.ErrUnknownHandler), errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNotJoinRecord):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPoolSaturated), errors.Is(err, engine.ErrPoolClosed), errors.Is(err, dispatch.ErrNotBound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
