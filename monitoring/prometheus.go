package monitoring

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mezonai/lpfarm/logx"
)

// OutcomeOK labels operations that committed. Rejected operations are
// labelled with their error code.
const OutcomeOK = "ok"

type farmPromMetrics struct {
	upUnixSeconds     prometheus.Gauge
	currentStep       prometheus.Gauge
	operationCount    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	vaultAvailable    prometheus.Gauge
	vaultFunded       prometheus.Gauge
	vaultPaidOut      prometheus.Gauge
	poolCount         prometheus.Gauge
	totalWeight       prometheus.Gauge
	poolStaked        *prometheus.GaugeVec
	panicCount        prometheus.Counter
}

func newFarmPromMetrics() *farmPromMetrics {
	return &farmPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_up_timestamp_unix_seconds",
				Help: "Unix timestamp at which the farm service started",
			},
		),
		currentStep: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_current_step",
				Help: "Step of the last processed operation",
			},
		),
		operationCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lpfarm_operations_total",
				Help: "The total number of farm operations by kind and outcome",
			},
			[]string{"op", "outcome"},
		),
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "lpfarm_operation_duration_seconds",
				Help: "Time spent applying and persisting one farm operation",
			},
			[]string{"op"},
		),
		vaultAvailable: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_vault_available",
				Help: "Reward tokens funded but not yet paid out",
			},
		),
		vaultFunded: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_vault_total_funded",
				Help: "Reward tokens ever deposited into the vault",
			},
		),
		vaultPaidOut: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_vault_total_paid_out",
				Help: "Reward tokens ever paid to stakers",
			},
		),
		poolCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_pool_count",
				Help: "Number of registered pools",
			},
		),
		totalWeight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lpfarm_total_weight",
				Help: "Sum of all pool weights",
			},
		),
		poolStaked: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lpfarm_pool_total_staked",
				Help: "Stake held by each pool",
			},
			[]string{"pool"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lpfarm_panic_count",
				Help: "The total number of recovered panics",
			},
		),
	}
}

var (
	farmMetrics *farmPromMetrics
	initOnce    sync.Once
)

// InitMetrics registers the farm metrics with the default registry. Calling
// it more than once is a no-op.
func InitMetrics() {
	initOnce.Do(func() {
		farmMetrics = newFarmPromMetrics()
		farmMetrics.upUnixSeconds.SetToCurrentTime()
	})
}

func RegisterMetrics(router *mux.Router) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func RecordOperation(op string, outcome string, duration time.Duration) {
	if farmMetrics == nil {
		return
	}
	farmMetrics.operationCount.With(prometheus.Labels{"op": op, "outcome": outcome}).Inc()
	farmMetrics.operationDuration.With(prometheus.Labels{"op": op}).Observe(duration.Seconds())
}

func SetCurrentStep(step uint64) {
	if farmMetrics == nil {
		return
	}
	farmMetrics.currentStep.Set(float64(step))
}

func SetVault(funded, paidOut, available *uint256.Int) {
	if farmMetrics == nil {
		return
	}
	farmMetrics.vaultFunded.Set(toFloat(funded))
	farmMetrics.vaultPaidOut.Set(toFloat(paidOut))
	farmMetrics.vaultAvailable.Set(toFloat(available))
}

func SetPools(count int, totalWeight uint64) {
	if farmMetrics == nil {
		return
	}
	farmMetrics.poolCount.Set(float64(count))
	farmMetrics.totalWeight.Set(float64(totalWeight))
}

func SetPoolStaked(poolID uint64, staked *uint256.Int) {
	if farmMetrics == nil {
		return
	}
	farmMetrics.poolStaked.With(prometheus.Labels{"pool": strconv.FormatUint(poolID, 10)}).Set(toFloat(staked))
}

func IncreasePanicCount() {
	if farmMetrics == nil {
		return
	}
	farmMetrics.panicCount.Inc()
}

// toFloat is lossy above 2^53, which is acceptable for gauges
func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	if v.IsUint64() {
		return float64(v.Uint64())
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
