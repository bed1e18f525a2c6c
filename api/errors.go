package api

import (
	"context"
	"errors"
	"net/http"

	farmerrors "github.com/mezonai/lpfarm/errors"
	"github.com/mezonai/lpfarm/logx"
)

var statusByCode = map[farmerrors.FarmErrorCode]int{
	farmerrors.ErrCodeInvalidRequest:           http.StatusBadRequest,
	farmerrors.ErrCodeInvalidAmount:            http.StatusBadRequest,
	farmerrors.ErrCodeInvalidAddress:           http.StatusBadRequest,
	farmerrors.ErrCodeUnauthorized:             http.StatusForbidden,
	farmerrors.ErrCodeInvalidPool:              http.StatusNotFound,
	farmerrors.ErrCodeDuplicatePool:            http.StatusConflict,
	farmerrors.ErrCodeInsufficientStake:        http.StatusUnprocessableEntity,
	farmerrors.ErrCodeInsufficientVaultBalance: http.StatusUnprocessableEntity,
	farmerrors.ErrCodeAssetTransferFailure:     http.StatusUnprocessableEntity,
	farmerrors.ErrCodeOverflow:                 http.StatusUnprocessableEntity,
	farmerrors.ErrCodeServiceStopped:           http.StatusServiceUnavailable,
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf maps an operation error to its HTTP status
func statusOf(err error) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	if status, ok := statusByCode[farmerrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logx.Error("FARM_API", "Internal error:", err)
	}
	writeErrorStatus(w, status, string(farmerrors.CodeOf(err)), farmerrors.MessageOf(err))
}

func writeErrorStatus(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Code: code, Message: message})
}
