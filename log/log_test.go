package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]interface{}{
		"trace": LevelTrace,
		"DEBUG": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"crit":  LevelCrit,
	} {
		lvl, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, lvl, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestModuleFiltering(t *testing.T) {
	var buf bytes.Buffer
	prev := Root()
	defer SetDefault(prev)
	require.NoError(t, InitJSONLogger(&buf, "trace"))

	DisableModule(VMMonitoring)
	Debug(VMMonitoring, "hidden")
	assert.Empty(t, buf.String())

	EnableModules(" vm_mod ,")
	defer DisableModule(VMMonitoring)
	Debug(VMMonitoring, "shown", "n", 1)
	out := buf.String()
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"mod":"vm_mod"`)

	// Info is never filtered on module.
	buf.Reset()
	Info(TrieMonitoring, "always")
	assert.Contains(t, buf.String(), "always")
}

func TestEventStream(t *testing.T) {
	var buf bytes.Buffer
	SetEventWriter(&buf)
	defer SetEventWriter(nil)

	Event("block", "node0", map[string]uint64{"number": 7}, 1500*time.Microsecond)
	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, `{"time":`), line)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "block", rec["msg_type"])
	assert.Equal(t, "node0", rec["sender_id"])
	assert.Equal(t, float64(1500), rec["elapsed"])
	assert.Equal(t, map[string]interface{}{"number": float64(7)}, rec["json_encoded"])
	_, hasMeta := rec["metadata"]
	assert.False(t, hasMeta)
}
