package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/garnizeh/dosecert/internal/dosing"
)

type CalcHandler struct{}

type amountRequest struct {
	SystemVolume        string `json:"systemVolume"`
	ConcentrationTarget string `json:"concentrationTarget"`
	ChemicalStrength    string `json:"chemicalStrength"`
}

type amountResponse struct {
	Amount string `json:"amount"`
}

// Amount computes the chemical amount for a volume, target and strength.
func (h *CalcHandler) Amount(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			err = errBadRequest("request body required")
		}
		writeError(w, r, err)
		return
	}
	amount, ok := dosing.ComputeAmount(req.SystemVolume, req.ConcentrationTarget, req.ChemicalStrength)
	if !ok {
		writeError(w, r, errBadRequest("systemVolume, concentrationTarget and chemicalStrength must be positive numbers"))
		return
	}
	writeJSON(w, amountResponse{Amount: amount}, http.StatusOK)
}

type adviceRequest struct {
	Disinfectant    string `json:"disinfectant"`
	IncomingMainsPh string `json:"incomingMainsPh"`
}

// Advice returns the pH contact-time recommendation. Both fields are empty
// when no override applies.
func (h *CalcHandler) Advice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, err)
		return
	}
	writeJSON(w, dosing.Advise(req.Disinfectant, req.IncomingMainsPh), http.StatusOK)
}
