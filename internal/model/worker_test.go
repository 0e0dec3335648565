package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWorkerConfigYAML(t *testing.T) {
	src := `
status: true
action: heartbeat
crontab: 120
interval: 5
tags: [a, b]
`
	var w WorkerConfig
	require.NoError(t, yaml.Unmarshal([]byte(src), &w))
	assert.True(t, w.Status)
	assert.Equal(t, "heartbeat", w.Action)
	require.NotNil(t, w.Crontab)
	assert.Equal(t, "120", w.Crontab.String())
	assert.Equal(t, 5, w.Extra["interval"])
	assert.NotContains(t, w.Extra, "status")
	assert.True(t, w.IsCronJob())
	assert.False(t, w.IsCustomWorker())
}

func TestWorkerConfigYAMLCronExpression(t *testing.T) {
	var w WorkerConfig
	require.NoError(t, yaml.Unmarshal([]byte("status: true\naction: log\ncrontab: \"*/5 * * * *\"\n"), &w))
	require.NotNil(t, w.Crontab)
	assert.Equal(t, "*/5 * * * *", w.Crontab.String())
}

func TestWorkerConfigWithoutCrontab(t *testing.T) {
	var w WorkerConfig
	require.NoError(t, yaml.Unmarshal([]byte("status: true\naction: heartbeat\n"), &w))
	assert.False(t, w.HasCrontab())
	assert.True(t, w.IsCustomWorker())

	w.Status = false
	assert.False(t, w.IsCustomWorker())
	assert.False(t, w.IsCronJob())
}

func TestCrontabJSONAcceptsNumberAndString(t *testing.T) {
	var w WorkerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"name":"A","status":true,"action":"x","crontab":60}`), &w))
	assert.Equal(t, "60", w.Crontab.String())

	require.NoError(t, json.Unmarshal([]byte(`{"name":"A","crontab":"0 * * * *"}`), &w))
	assert.Equal(t, "0 * * * *", w.Crontab.String())

	assert.Error(t, json.Unmarshal([]byte(`{"crontab":{"x":1}}`), &w))
}

func TestWorkerConfigJSONPipePayload(t *testing.T) {
	cr := Crontab("30")
	in := WorkerConfig{Name: "A", Status: true, Action: "log", Crontab: &cr, Extra: map[string]any{"k": "v"}}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out WorkerConfig
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, "30", out.Crontab.String())
	assert.Equal(t, "v", out.Extra["k"])
}

func TestActionArgs(t *testing.T) {
	w := WorkerConfig{Name: "A", Extra: map[string]any{"interval": 3, "worker_name": "spoofed"}}
	args := w.ActionArgs()
	assert.Equal(t, "A", args["worker_name"])
	assert.Equal(t, 3, args["interval"])
	// 不修改原配置
	assert.Equal(t, "spoofed", w.Extra["worker_name"])
}

func TestFanInJobDone(t *testing.T) {
	assert.False(t, FanInJob{Tasks: 1}.Done())
	assert.True(t, FanInJob{Tasks: 0}.Done())
}
