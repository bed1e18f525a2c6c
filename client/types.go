package client

import (
	"fmt"

	"github.com/holiman/uint256"
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

// Position is a user's stake with the reward pending at Step
type Position struct {
	PoolID     uint64       `json:"pool_id"`
	User       string       `json:"user"`
	Amount     *uint256.Int `json:"amount"`
	RewardDebt *uint256.Int `json:"reward_debt"`
	Pending    *uint256.Int `json:"pending"`
	Step       uint64       `json:"step"`
}

type Pending struct {
	PoolID  uint64       `json:"pool_id"`
	User    string       `json:"user"`
	Step    uint64       `json:"step"`
	Pending *uint256.Int `json:"pending"`
}

type Vault struct {
	RewardAsset   string       `json:"reward_asset"`
	TotalFunded   *uint256.Int `json:"total_funded"`
	TotalPaidOut  *uint256.Int `json:"total_paid_out"`
	RewardPerStep *uint256.Int `json:"reward_per_step"`
	Available     *uint256.Int `json:"available"`
	TotalWeight   uint64       `json:"total_weight"`
}

type Balance struct {
	Asset   string       `json:"asset"`
	Address string       `json:"address"`
	Balance *uint256.Int `json:"balance"`
}

type Status struct {
	Step        uint64 `json:"step"`
	Owner       string `json:"owner"`
	Pools       int    `json:"pools"`
	TotalWeight uint64 `json:"total_weight"`
}

// APIError is a non-200 response from the farm API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("farm api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("farm api: status %d: %s: %s", e.Status, e.Code, e.Message)
}
