package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agen/paramgw/internal/authz"
	"github.com/tenzoki/agen/paramgw/internal/cache"
	"github.com/tenzoki/agen/paramgw/internal/events"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

func newTestTranslator(t *testing.T) (*Translator, *parambus.MemoryDriver) {
	t.Helper()
	driver := parambus.NewMemoryDriver()
	adapter := parambus.NewAdapter(driver)
	require.NoError(t, adapter.Open("test"))

	c := cache.New(cache.Config{})
	hook := authz.NewHook(nil)
	log := logging.New("test", false)
	pipeline := events.NewPipeline(adapter, c, noopEmitter{}, log, "gw", "uplink", false)

	return New(adapter, c, hook, pipeline, log), driver
}

type noopEmitter struct{}

func (noopEmitter) Emit(n *events.Notification) error { return nil }

func TestInternalGetSingleNameHit(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.DeviceInfo.Uptime", valuecodec.TypedValue{Value: "12345", Type: valuecodec.TypeInt})

	reqBody := `{"id":"req-1","op":"GET","params":["Device.DeviceInfo.Uptime"]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 200, resp.Status)
	require.Contains(t, resp.Results, "Device.DeviceInfo.Uptime")
	assert.Equal(t, "12345", resp.Results["Device.DeviceInfo.Uptime"].V)
	assert.Equal(t, int(valuecodec.TypeInt), resp.Results["Device.DeviceInfo.Uptime"].T)
}

func TestInternalGetMixedHitAndMiss(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.A", valuecodec.TypedValue{Value: "1", Type: valuecodec.TypeInt})

	reqBody := `{"id":"req-2","op":"GET","params":["Device.A","Device.Missing"]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 207, resp.Status)
	assert.NotNil(t, resp.Results["Device.A"])
	assert.Nil(t, resp.Results["Device.Missing"])
}

func TestInternalGetAllMissIsFiveHundred(t *testing.T) {
	tr, _ := newTestTranslator(t)
	reqBody := `{"id":"req-3","op":"GET","params":["Device.Nope"]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 500, resp.Status)
	assert.Nil(t, resp.Results["Device.Nope"])
}

func TestInternalSetThenGetReflectsNewValue(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.X", valuecodec.TypedValue{Value: "1", Type: valuecodec.TypeInt})

	setBody := `{"id":"req-4","op":"SET","param":"Device.X","value":"2","dataType":1}`
	setOut := tr.Handle([]byte(setBody), "fallback", authz.AuthContext{Authenticated: true})

	var setResp wireResponse
	require.NoError(t, json.Unmarshal(setOut, &setResp))
	assert.Equal(t, 200, setResp.Status)

	getBody := `{"id":"req-5","op":"GET","params":["Device.X"]}`
	getOut := tr.Handle([]byte(getBody), "fallback", authz.AuthContext{})

	var getResp wireResponse
	require.NoError(t, json.Unmarshal(getOut, &getResp))
	assert.Equal(t, "2", getResp.Results["Device.X"].V)
}

func TestInternalSetUnauthenticatedIsRejected(t *testing.T) {
	tr, _ := newTestTranslator(t)
	setBody := `{"id":"req-6","op":"SET","param":"Device.X","value":"2","dataType":1}`
	out := tr.Handle([]byte(setBody), "fallback", authz.AuthContext{})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 401, resp.Status)
}

func TestWebpaGroupedEgressForWildcard(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.WiFi.SSID.1.Name", valuecodec.TypedValue{Value: "home", Type: valuecodec.TypeString})
	driver.Seed("Device.WiFi.SSID.2.Name", valuecodec.TypedValue{Value: "guest", Type: valuecodec.TypeString})

	reqBody := `{"id":"req-7","command":"GET","names":["Device.WiFi.SSID."]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp WebpaResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, resp.Parameters, 1)

	raw, err := json.Marshal(resp.Parameters[0])
	require.NoError(t, err)
	var group WebpaGroupedParam
	require.NoError(t, json.Unmarshal(raw, &group))
	assert.Equal(t, "Device.WiFi.SSID.", group.Name)
	assert.Equal(t, int(valuecodec.TypeGroup), group.DataType)
	assert.Equal(t, 2, group.ParameterCount)
	assert.Equal(t, "Success", group.Message)
	require.Len(t, group.Value, 2)
	assert.Equal(t, "Device.WiFi.SSID.1.Name", group.Value[0].Name)
	assert.Equal(t, "home", group.Value[0].Value)
}

func TestWebpaGroupedEgressEmptyWildcardIsSuccess(t *testing.T) {
	tr, _ := newTestTranslator(t)
	reqBody := `{"id":"req-8","command":"GET","names":["Device.Nothing."]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp WebpaResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, resp.Parameters, 1)
	group, ok := resp.Parameters[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(0), group["parameterCount"])
	assert.Equal(t, float64(valuecodec.TypeGroup), group["dataType"])
	assert.Equal(t, "Success", group["message"])
}

func TestWebpaFlatEgressForPlainGet(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.DeviceInfo.SerialNumber", valuecodec.TypedValue{Value: "ABC", Type: valuecodec.TypeString})

	reqBody := `{"id":"req-12","command":"GET","names":["Device.DeviceInfo.SerialNumber"]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp WebpaResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Success", resp.Message)
	require.Len(t, resp.Parameters, 1)

	raw, err := json.Marshal(resp.Parameters[0])
	require.NoError(t, err)
	var p WebpaFlatParam
	require.NoError(t, json.Unmarshal(raw, &p))
	assert.Equal(t, "Device.DeviceInfo.SerialNumber", p.Name)
	assert.Equal(t, "ABC", p.Value)
	assert.Equal(t, int(valuecodec.TypeString), p.DataType)
}

func TestWebpaFlatEgressFailureMessage(t *testing.T) {
	tr, _ := newTestTranslator(t)
	reqBody := `{"id":"req-13","command":"GET","names":["Device.Missing"]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp WebpaResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "Failure", resp.Message)
	assert.Empty(t, resp.Parameters)
}

func TestWebpaSetNormalizesFirstParameter(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.X", valuecodec.TypedValue{Value: "1", Type: valuecodec.TypeInt})

	reqBody := `{"id":"req-14","command":"SET","parameters":[{"name":"Device.X","value":"7","dataType":1}]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{Authenticated: true})

	var resp WebpaResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Success", resp.Message)

	tv, err := driver.GetRaw("Device.X")
	require.NoError(t, err)
	assert.Equal(t, "7", tv.Value)
}

func TestTestAndSetPreconditionMismatchAtTranslatorLevel(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.Counter", valuecodec.TypedValue{Value: "5", Type: valuecodec.TypeInt})

	reqBody := `{"id":"req-9","op":"TEST_AND_SET","param":"Device.Counter","oldValue":"4","newValue":"6","dataType":1}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{Authenticated: true})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 412, resp.Status)
}

func TestAddRowThenDeleteRow(t *testing.T) {
	tr, _ := newTestTranslator(t)

	addBody := `{"id":"req-10","op":"ADD_ROW","tableName":"Device.WiFi.SSID.","rowData":[{"name":"Name","value":"office","dataType":0}]}`
	addOut := tr.Handle([]byte(addBody), "fallback", authz.AuthContext{Authenticated: true})

	var addResp wireResponse
	require.NoError(t, json.Unmarshal(addOut, &addResp))
	assert.Equal(t, 200, addResp.Status)
	require.NotEmpty(t, addResp.NewRowName)

	delBody := `{"id":"req-11","op":"DELETE_ROW","rowName":"` + addResp.NewRowName + `"}`
	delOut := tr.Handle([]byte(delBody), "fallback", authz.AuthContext{Authenticated: true})

	var delResp wireResponse
	require.NoError(t, json.Unmarshal(delOut, &delResp))
	assert.Equal(t, 200, delResp.Status)
}

func TestGetNonStringParamEntryReportedByIndex(t *testing.T) {
	tr, driver := newTestTranslator(t)
	driver.Seed("Device.A", valuecodec.TypedValue{Value: "1", Type: valuecodec.TypeInt})

	reqBody := `{"id":"req-15","op":"GET","params":["Device.A",42]}`
	out := tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 207, resp.Status)
	assert.NotNil(t, resp.Results["Device.A"])
	require.Contains(t, resp.Results, "_1")
	assert.Nil(t, resp.Results["_1"])
}

// countingDriver wraps MemoryDriver to count bus reads, for asserting
// the cache absorbs repeat GETs.
type countingDriver struct {
	*parambus.MemoryDriver
	gets int
}

func (d *countingDriver) GetRaw(name string) (valuecodec.TypedValue, error) {
	d.gets++
	return d.MemoryDriver.GetRaw(name)
}

func TestRepeatGetWithinTTLSkipsParambus(t *testing.T) {
	driver := &countingDriver{MemoryDriver: parambus.NewMemoryDriver()}
	adapter := parambus.NewAdapter(driver)
	require.NoError(t, adapter.Open("test"))

	c := cache.New(cache.Config{})
	hook := authz.NewHook(nil)
	log := logging.New("test", false)
	pipeline := events.NewPipeline(adapter, c, noopEmitter{}, log, "gw", "uplink", false)
	tr := New(adapter, c, hook, pipeline, log)

	driver.Seed("Device.DeviceInfo.SerialNumber", valuecodec.TypedValue{Value: "ABC", Type: valuecodec.TypeString})

	reqBody := `{"id":"1","op":"GET","params":["Device.DeviceInfo.SerialNumber"]}`
	tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})
	require.Equal(t, 1, driver.gets)

	tr.Handle([]byte(reqBody), "fallback", authz.AuthContext{})
	assert.Equal(t, 1, driver.gets, "second identical GET within TTL must not reach the bus")
}

func TestMalformedJSONYieldsInvalidRequest(t *testing.T) {
	tr, _ := newTestTranslator(t)
	out := tr.Handle([]byte(`not json`), "fallback", authz.AuthContext{})

	var resp wireResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, 400, resp.Status)
}
