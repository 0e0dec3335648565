package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sandy1219/ypf/application/components/logging"
	"github.com/sandy1219/ypf/internal/consts"
	"github.com/sandy1219/ypf/internal/store"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultHTTPTimeout       = 15 * time.Second
	maxResponseBody          = 1 << 20
)

// Heartbeat 心跳记录
type Heartbeat struct {
	Worker string    `json:"worker"`
	PID    int       `json:"pid"`
	At     time.Time `json:"at"`
}

// RegisterBuiltins 注册内置 handler; st 为 nil 时不注册 heartbeat
func RegisterBuiltins(r *Registry, st store.Store) error {
	builtins := map[string]Handler{
		consts.HANDLER_LOG:    HandlerFunc(logArgs),
		consts.HANDLER_HTTP:   NewHTTPHandler(nil),
		consts.HANDLER_SQUARE: HandlerFunc(square),
		consts.HANDLER_SUM:    HandlerFunc(sumCallback),
	}
	if st != nil {
		builtins[consts.HANDLER_HEARTBEAT] = NewHeartbeat(st)
	}
	for name, h := range builtins {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func logArgs(ctx context.Context, args Args) (any, error) {
	fields := make([]zap.Field, 0, len(args))
	for k, v := range args {
		fields = append(fields, zap.Any(k, v))
	}
	logging.Info(ctx, "log action invoked", fields...)
	return map[string]any(args), nil
}

func square(_ context.Context, args Args) (any, error) {
	n, err := args.Float("n")
	if err != nil {
		return nil, err
	}
	return n * n, nil
}

// sumCallback 作为回调使用: 记录 {task_id, result}
func sumCallback(ctx context.Context, args Args) (any, error) {
	logging.Info(ctx, "task finished",
		zap.Any(consts.ARG_TASK_ID, args[consts.ARG_TASK_ID]),
		zap.Any(consts.ARG_RESULT, args[consts.ARG_RESULT]),
	)
	return nil, nil
}

// NewHeartbeat 长驻型 action: 每隔 interval 秒写一次心跳, 直到 ctx 结束
func NewHeartbeat(st store.Store) Handler {
	return HandlerFunc(func(ctx context.Context, args Args) (any, error) {
		worker := args.Str(consts.ARG_WORKER_NAME)
		if worker == "" {
			return nil, fmt.Errorf("heartbeat requires %s", consts.ARG_WORKER_NAME)
		}
		interval := args.Seconds("interval", defaultHeartbeatInterval)
		key := consts.KEY_HEARTBEAT_PREFIX + worker

		beat := func() {
			hb := Heartbeat{Worker: worker, PID: os.Getpid(), At: time.Now()}
			if err := st.Set(ctx, key, hb); err != nil && ctx.Err() == nil {
				logging.Warn(ctx, "write heartbeat failed", zap.String("worker", worker), zap.Error(err))
			}
		}
		beat()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil, nil
			case <-ticker.C:
				beat()
			}
		}
	})
}

// HTTPHandler 发起一次 HTTP 调用; 非 2xx 或业务失败 (status=FAILED / error 非空) 均返回错误
type HTTPHandler struct {
	client *http.Client
}

// NewHTTPHandler client 为 nil 时使用带 otel 埋点的默认 client
func NewHTTPHandler(client *http.Client) *HTTPHandler {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &HTTPHandler{client: client}
}

func (h *HTTPHandler) Handle(ctx context.Context, args Args) (any, error) {
	url := args.Str("url")
	if url == "" {
		return nil, fmt.Errorf("http handler requires url")
	}
	method := strings.ToUpper(args.Str("method"))
	if method == "" {
		method = http.MethodGet
	}
	ctx, cancel := context.WithTimeout(ctx, args.Seconds("timeout", defaultHTTPTimeout))
	defer cancel()

	var body io.Reader
	if b, ok := args["body"]; ok && b != nil {
		switch v := b.(type) {
		case string:
			body = strings.NewReader(v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode body: %w", err)
			}
			body = bytes.NewReader(raw)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %s; body=%s", method, url, resp.Status, string(data))
	}
	status := gjson.GetBytes(data, "status").String()
	errMsg := gjson.GetBytes(data, "error").String()
	if strings.EqualFold(status, "FAILED") || strings.TrimSpace(errMsg) != "" {
		return nil, fmt.Errorf("biz_failed: status=%s error=%s", status, errMsg)
	}

	result := map[string]any{"status_code": resp.StatusCode}
	if gjson.ValidBytes(data) {
		result["body"] = gjson.ParseBytes(data).Value()
	} else {
		result["body"] = string(data)
	}
	return result, nil
}
