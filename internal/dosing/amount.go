package dosing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/garnizeh/dosecert/pkg/models"
)

// ppmPerPercent converts a percentage strength into parts per million.
const ppmPerPercent = 10000

// ComputeAmount returns the chemical amount needed to bring volumeLitres of
// water to targetPPM using a product of strengthPercent. ok is false when
// any input is missing, non-numeric or not strictly positive, or when the
// result does not fit in a float64.
func ComputeAmount(volumeLitres, targetPPM, strengthPercent string) (string, bool) {
	v, ok := parsePositive(volumeLitres)
	if !ok {
		return "", false
	}
	t, ok := parsePositive(targetPPM)
	if !ok {
		return "", false
	}
	s, ok := parsePositive(strengthPercent)
	if !ok {
		return "", false
	}
	l := LitresRequired(v, t, s)
	if math.IsInf(l, 0) || math.IsNaN(l) {
		return "", false
	}
	return FormatAmount(l), true
}

func LitresRequired(volumeLitres, targetPPM, strengthPercent float64) float64 {
	return (volumeLitres * targetPPM) / (strengthPercent * ppmPerPercent)
}

// FormatAmount shows sub-litre amounts as whole millilitres and anything
// larger as litres with two decimals.
func FormatAmount(litres float64) string {
	if litres < 1 {
		return fmt.Sprintf("%d ml", int64(math.Round(litres*1000)))
	}
	return fmt.Sprintf("%.2f Litres", litres)
}

// RecalculateAmount refreshes job.AmountAdded from its volume, target and
// strength. The previous value is left alone when the inputs are unusable.
func RecalculateAmount(job *models.JobRecord) bool {
	if job == nil {
		return false
	}
	amount, ok := ComputeAmount(job.SystemVolume, job.ConcentrationTarget, job.ChemicalStrength)
	if !ok {
		return false
	}
	job.AmountAdded = amount
	return true
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parsePositive(s string) (float64, bool) {
	f, ok := parseNumber(s)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}
