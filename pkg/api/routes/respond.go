package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/api/middleware"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/common/models"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/ledger"
)

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

// StatusFor maps a rejection kind to its HTTP status.
func StatusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.ErrNotFound:
		return http.StatusNotFound
	case failure.ErrUnauthorized:
		return http.StatusForbidden
	case failure.ErrInvalidInput, failure.ErrInvalidAmount, failure.ErrInvalidScore, failure.ErrInvalidPayoutPlan:
		return http.StatusBadRequest
	case failure.ErrInsufficientBalance, failure.ErrInsufficientAllowance,
		failure.ErrNotForSale, failure.ErrSelfPurchase, failure.ErrJobNotOpen, failure.ErrNoSubmissions:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Log.WithError(err).Error("request failed")
	}
	writeJSONStatus(w, status, models.ErrorResponse{Error: err.Error(), Kind: failure.Name(err)})
}

func badRequest(w http.ResponseWriter, kind error, op, msg string) {
	writeError(w, failure.New(kind, op, "%s", msg))
}

func decode(w http.ResponseWriter, r *http.Request, op string, dst interface{}) bool {
	return decodeBody(w, r, op, dst, false)
}

// decodeOptional treats an empty body as the zero request.
func decodeOptional(w http.ResponseWriter, r *http.Request, op string, dst interface{}) bool {
	return decodeBody(w, r, op, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, op string, dst interface{}, optional bool) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONStatus(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "request body too large", Kind: "InvalidInput"})
			return false
		}
		badRequest(w, failure.ErrInvalidInput, op, "invalid request body")
		return false
	}
	return true
}

// requireCaller returns the authenticated caller or answers 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (account.Account, bool) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		writeJSONStatus(w, http.StatusUnauthorized, models.ErrorResponse{Error: "caller identity is required", Kind: "Unauthorized"})
		return "", false
	}
	return caller, true
}

func pathID(w http.ResponseWriter, r *http.Request, op string) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		badRequest(w, failure.ErrInvalidInput, op, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func pathAccount(w http.ResponseWriter, r *http.Request, op, name string) (account.Account, bool) {
	return parseAccount(w, op, mux.Vars(r)[name])
}

func parseAccount(w http.ResponseWriter, op, raw string) (account.Account, bool) {
	a, err := account.Normalize(raw)
	if err != nil {
		badRequest(w, failure.ErrInvalidInput, op, err.Error())
		return "", false
	}
	return a, true
}

func parseAmount(w http.ResponseWriter, op, raw string) (*uint256.Int, bool) {
	v, err := ledger.ParseAmount(raw)
	if err != nil {
		badRequest(w, failure.ErrInvalidAmount, op, err.Error())
		return nil, false
	}
	return v, true
}

func amount(v *uint256.Int) models.Amount {
	if v == nil {
		v = new(uint256.Int)
	}
	return models.Amount{Raw: v.Dec(), Formatted: ledger.FormatUnits(v)}
}

func receipt(recs []events.Record, id *uint64) models.Receipt {
	out := models.Receipt{ID: id, Events: make([]models.EventBrief, 0, len(recs))}
	for _, rec := range recs {
		data, err := json.Marshal(rec.Event)
		if err != nil {
			logger.Log.WithError(err).WithField("seq", rec.Seq).Error("failed to encode event")
			continue
		}
		out.Events = append(out.Events, models.EventBrief{Sequence: rec.Seq, Type: rec.Type(), Data: data})
	}
	return out
}
