package dosing

import (
	"fmt"
	"strings"

	"github.com/garnizeh/dosecert/pkg/models"
)

// phSensitiveFamily is matched case-insensitively against the disinfectant name.
const phSensitiveFamily = "sodium hypochlorite"

// PHThreshold is the lowest incoming pH that needs a longer contact time.
const PHThreshold = 7.6

// Advice is empty when no override is recommended.
type Advice struct {
	Warning         string `json:"warning"`
	RecommendedTime string `json:"recommendedTime"`
}

func (a Advice) Empty() bool {
	return a.Warning == "" && a.RecommendedTime == ""
}

type phBand struct {
	lower float64
	time  string
}

// Bands are ordered by lower bound; each band runs up to the next lower
// bound (exclusive) and the last one is open ended.
var phBands = []phBand{
	{7.6, "1.00 Hour"},
	{7.7, "1.25 Hours (1h 15m)"},
	{7.85, "1.67 Hours (1h 40m)"},
	{8.0, "2.50 Hours (2h 30m)"},
	{8.45, "5.00 Hours"},
}

// Advise recommends a contact time for pH-sensitive disinfectants based on
// the incoming mains pH. It never changes stored data.
func Advise(disinfectant, incomingPH string) Advice {
	if !strings.Contains(strings.ToLower(disinfectant), phSensitiveFamily) {
		return Advice{}
	}
	ph, ok := parseNumber(incomingPH)
	if !ok || ph < PHThreshold {
		return Advice{}
	}

	band := phBands[0]
	for _, b := range phBands {
		if ph >= b.lower {
			band = b
		}
	}

	return Advice{
		Warning: fmt.Sprintf("High incoming pH (%s): sodium hypochlorite is less effective above pH %.1f. Recommended contact time is %s.",
			strings.TrimSpace(incomingPH), PHThreshold, band.time),
		RecommendedTime: band.time,
	}
}

// ApplyAdvice overwrites job.ContactTime with the recommendation, if any.
func ApplyAdvice(job *models.JobRecord) bool {
	if job == nil {
		return false
	}
	adv := Advise(job.Disinfectant, job.IncomingMainsPh)
	if adv.RecommendedTime == "" || adv.RecommendedTime == job.ContactTime {
		return false
	}
	job.ContactTime = adv.RecommendedTime
	return true
}
