package system

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
	"github.com/taosdata/bouncerkeeper/version"
)

func testConfig(t *testing.T) *config.Config {
	conf, err := config.Load([]string{"--daemon", "--host", "127.0.0.1", "--port", "1", "--timeout", "200ms", "--interval", "1s", "--http-port", "0", "pools"})
	require.NoError(t, err)
	return conf
}

func TestInit(t *testing.T) {
	d, err := Init(testConfig(t))
	require.NoError(t, err)
	defer d.shutdown()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/check_health", nil)
	d.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, version.Version, body["version"])
}

func TestMetricsAfterFailedCycle(t *testing.T) {
	d, err := Init(testConfig(t))
	require.NoError(t, err)

	prg := newProgram(d, time.Second)
	d.run(prg.interval)
	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
		d.Handler().ServeHTTP(w, req)
		return strings.Contains(w.Body.String(), `bouncerkeeper_failures_total{kind="connection",query="pools"}`)
	}, 10*time.Second, 100*time.Millisecond)
	d.shutdown()
}

func TestInitUnknownQuery(t *testing.T) {
	conf := testConfig(t)
	conf.Metrics.Queries = []string{"reload"}
	_, err := Init(conf)
	assert.Error(t, err)
}

var _ service.Interface = (*program)(nil)
