package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndExpose(t *testing.T) {
	InitMetrics()
	InitMetrics()

	before := testutil.ToFloat64(farmMetrics.operationCount.With(prometheus.Labels{"op": "deposit", "outcome": OutcomeOK}))
	RecordOperation("deposit", OutcomeOK, 3*time.Millisecond)
	RecordOperation("withdraw", "insufficient_stake", time.Millisecond)
	after := testutil.ToFloat64(farmMetrics.operationCount.With(prometheus.Labels{"op": "deposit", "outcome": OutcomeOK}))
	assert.Equal(t, before+1, after)

	SetVault(uint256.NewInt(1000), uint256.NewInt(59), uint256.NewInt(941))
	assert.Equal(t, float64(941), testutil.ToFloat64(farmMetrics.vaultAvailable))
	SetPools(2, 4)
	assert.Equal(t, float64(4), testutil.ToFloat64(farmMetrics.totalWeight))
	SetPoolStaked(1, uint256.NewInt(300))
	SetCurrentStep(19)
	assert.Equal(t, float64(19), testutil.ToFloat64(farmMetrics.currentStep))

	router := mux.NewRouter()
	RegisterMetrics(router)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `lpfarm_operations_total{op="withdraw",outcome="insufficient_stake"}`))
	assert.True(t, strings.Contains(body, `lpfarm_pool_total_staked{pool="1"} 300`))
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, float64(0), toFloat(nil))
	assert.Equal(t, float64(42), toFloat(uint256.NewInt(42)))
	big := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	assert.InDelta(t, 1.2676506002282294e30, toFloat(big), 1e15)
}
