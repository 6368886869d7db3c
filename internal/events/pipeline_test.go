package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agen/paramgw/internal/cache"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

type captureEmitter struct {
	notifications []*Notification
}

func (c *captureEmitter) Emit(n *Notification) error {
	c.notifications = append(c.notifications, n)
	return nil
}

func TestPipelineValueChangeFillsOldValueFromCache(t *testing.T) {
	drv := parambus.NewMemoryDriver()
	adapter := parambus.NewAdapter(drv)
	require.NoError(t, adapter.Open("test"))

	c := cache.New(cache.Config{})
	c.Set("Device.WiFi.Radio.1.Enable", "false", valuecodec.TypeBool, 0)

	emitter := &captureEmitter{}
	log := logging.New("test", false)
	p := NewPipeline(adapter, c, emitter, log, "gateway", "events", true)
	require.NoError(t, p.Subscribe("Device.WiFi.Radio.1.Enable"))

	require.NoError(t, adapter.SetTyped("Device.WiFi.Radio.1.Enable", valuecodec.TypedValue{Value: "true", Type: valuecodec.TypeBool}))

	require.Len(t, emitter.notifications, 1)
	n := emitter.notifications[0]
	assert.Equal(t, TypeParamChange, n.Type)

	var data ParamChangeData
	require.NoError(t, json.Unmarshal(n.Data, &data))
	assert.Equal(t, "false", data.OldValue)
	assert.Equal(t, "true", data.NewValue)
}

func TestPipelineValueChangeFallsBackToUnknownWhenFlagOff(t *testing.T) {
	drv := parambus.NewMemoryDriver()
	adapter := parambus.NewAdapter(drv)
	require.NoError(t, adapter.Open("test"))

	c := cache.New(cache.Config{})
	c.Set("Device.A", "old", valuecodec.TypeString, 0)

	emitter := &captureEmitter{}
	log := logging.New("test", false)
	p := NewPipeline(adapter, c, emitter, log, "gateway", "events", false)
	require.NoError(t, p.Subscribe("Device.A"))

	require.NoError(t, adapter.SetTyped("Device.A", valuecodec.TypedValue{Value: "new", Type: valuecodec.TypeString}))

	require.Len(t, emitter.notifications, 1)
	var data ParamChangeData
	require.NoError(t, json.Unmarshal(emitter.notifications[0].Data, &data))
	assert.Equal(t, "unknown", data.OldValue)
}
