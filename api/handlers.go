package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/mezonai/lpfarm/clock"
	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/events"
	"github.com/mezonai/lpfarm/logx"
	"github.com/mezonai/lpfarm/types"
)

type addPoolRequest struct {
	Weight     uint64 `json:"weight"`
	StakeAsset string `json:"stake_asset"`
	MassUpdate bool   `json:"mass_update"`
}

type setPoolRequest struct {
	Weight     uint64 `json:"weight"`
	MassUpdate bool   `json:"mass_update"`
}

type setRateRequest struct {
	Rate       string `json:"rate"`
	MassUpdate bool   `json:"mass_update"`
}

type advanceRequest struct {
	Steps uint64 `json:"steps"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// VaultResponse is the vault state plus derived figures
type VaultResponse struct {
	*types.VaultState
	Available   *uint256.Int `json:"available"`
	TotalWeight uint64       `json:"total_weight"`
}

// PositionResponse is a position with its reward pending at the current step
type PositionResponse struct {
	*types.Position
	Pending *uint256.Int `json:"pending"`
	Step    uint64       `json:"step"`
}

type PendingResponse struct {
	PoolID  uint64       `json:"pool_id"`
	User    string       `json:"user"`
	Step    uint64       `json:"step"`
	Pending *uint256.Int `json:"pending"`
}

type BalanceResponse struct {
	Asset   string       `json:"asset"`
	Address string       `json:"address"`
	Balance *uint256.Int `json:"balance"`
}

type StatusResponse struct {
	Step        uint64 `json:"step"`
	Owner       string `json:"owner"`
	Pools       int    `json:"pools"`
	TotalWeight uint64 `json:"total_weight"`
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return farmerrors.Wrap(farmerrors.ErrCodeInvalidRequest, err, "invalid request body")
	}
	return nil
}

func parseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, farmerrors.Newf(farmerrors.ErrCodeInvalidAmount, "invalid amount %q", raw)
	}
	return amount, nil
}

func poolID(r *http.Request) (uint64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, farmerrors.Newf(farmerrors.ErrCodeInvalidPool, "invalid pool id %q", raw)
	}
	return id, nil
}

func caller(r *http.Request) string {
	return r.Header.Get(CallerHeader)
}

// Administration

func (api *FarmAPI) addPool(w http.ResponseWriter, r *http.Request) {
	var req addPoolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	receipt, err := api.svc.AddPool(r.Context(), caller(r), req.Weight, req.StakeAsset, req.MassUpdate)
	api.writeReceipt(w, receipt, err)
}

func (api *FarmAPI) setPool(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setPoolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	receipt, err := api.svc.SetPool(r.Context(), caller(r), id, req.Weight, req.MassUpdate)
	api.writeReceipt(w, receipt, err)
}

func (api *FarmAPI) setRewardRate(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rate, err := parseAmount(req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}
	receipt, err := api.svc.SetRewardRate(r.Context(), caller(r), rate, req.MassUpdate)
	api.writeReceipt(w, receipt, err)
}

// Vault

func (api *FarmAPI) fund(w http.ResponseWriter, r *http.Request) {
	amount, ok := api.readAmount(w, r)
	if !ok {
		return
	}
	receipt, err := api.svc.Fund(r.Context(), caller(r), amount)
	api.writeReceipt(w, receipt, err)
}

func (api *FarmAPI) getVault(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, &VaultResponse{
		VaultState:  api.svc.GetVault(),
		Available:   api.svc.VaultAvailable(),
		TotalWeight: api.svc.TotalWeight(),
	})
}

// Pool info

func (api *FarmAPI) getPools(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, api.svc.GetPools())
}

func (api *FarmAPI) getPool(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pool, err := api.svc.GetPool(id)
	if err != nil {
		writeError(w, err)
		return
	}
	api.writeJSON(w, pool)
}

func (api *FarmAPI) getPosition(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user := mux.Vars(r)["user"]
	step := api.svc.CurrentStep()
	pos, err := api.svc.GetPosition(id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := api.svc.PendingRewardAt(step, id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	api.writeJSON(w, &PositionResponse{Position: pos, Pending: pending, Step: step})
}

func (api *FarmAPI) getPending(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user := mux.Vars(r)["user"]
	step := api.svc.CurrentStep()
	pending, err := api.svc.PendingRewardAt(step, id, user)
	if err != nil {
		writeError(w, err)
		return
	}
	api.writeJSON(w, &PendingResponse{PoolID: id, User: user, Step: step, Pending: pending})
}

// Staking

func (api *FarmAPI) deposit(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, ok := api.readAmount(w, r)
	if !ok {
		return
	}
	receipt, err := api.svc.Deposit(r.Context(), caller(r), id, amount)
	api.writeReceipt(w, receipt, err)
}

func (api *FarmAPI) withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amount, ok := api.readAmount(w, r)
	if !ok {
		return
	}
	receipt, err := api.svc.Withdraw(r.Context(), caller(r), id, amount)
	api.writeReceipt(w, receipt, err)
}

func (api *FarmAPI) harvest(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	receipt, err := api.svc.Harvest(r.Context(), caller(r), id)
	api.writeReceipt(w, receipt, err)
}

func (api *FarmAPI) emergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	id, err := poolID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	receipt, err := api.svc.EmergencyWithdraw(r.Context(), caller(r), id)
	api.writeReceipt(w, receipt, err)
}

// Ledger and status

func (api *FarmAPI) getBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	balance, err := api.svc.Balance(vars["asset"], vars["addr"])
	if err != nil {
		writeError(w, err)
		return
	}
	api.writeJSON(w, &BalanceResponse{Asset: vars["asset"], Address: vars["addr"], Balance: balance})
}

func (api *FarmAPI) getStatus(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, &StatusResponse{
		Step:        api.svc.CurrentStep(),
		Owner:       api.svc.Owner(),
		Pools:       len(api.svc.GetPools()),
		TotalWeight: api.svc.TotalWeight(),
	})
}

func (api *FarmAPI) advanceClock(w http.ResponseWriter, r *http.Request, counter *clock.ManualCounter) {
	if caller(r) != api.svc.Owner() {
		writeError(w, farmerrors.Newf(farmerrors.ErrCodeUnauthorized, "only the farm owner may advance the clock"))
		return
	}
	var req advanceRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Steps == 0 {
		req.Steps = 1
	}
	step := counter.Advance(req.Steps)
	logx.Info("FARM_API", fmt.Sprintf("Clock advanced by %d to step %d", req.Steps, step))
	api.getStatus(w, r)
}

// streamEvents sends farm events as server-sent events until the client goes away
func (api *FarmAPI) streamEvents(w http.ResponseWriter, r *http.Request) {
	bus := api.svc.Events()
	flusher, ok := w.(http.Flusher)
	if bus == nil || !ok {
		writeErrorStatus(w, http.StatusNotImplemented, "not_supported", "event streaming unavailable")
		return
	}
	id, ch := bus.Subscribe()
	defer bus.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(eventPayload(ev))
			if err != nil {
				logx.Error("FARM_API", "Failed to encode event:", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func eventPayload(ev events.FarmEvent) interface{} {
	switch e := ev.(type) {
	case *events.OperationCommitted:
		return e.Receipt()
	case *events.OperationFailed:
		return map[string]interface{}{
			"op":      e.Op(),
			"step":    e.Step(),
			"pool_id": e.PoolID(),
			"user":    e.User(),
			"code":    e.ErrorCode(),
			"message": e.ErrorMessage(),
		}
	default:
		return map[string]interface{}{"type": ev.Type(), "step": ev.Step()}
	}
}

func (api *FarmAPI) readAmount(w http.ResponseWriter, r *http.Request) (*uint256.Int, bool) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return amount, true
}

func (api *FarmAPI) writeReceipt(w http.ResponseWriter, receipt *types.Receipt, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	api.writeJSON(w, receipt)
}
