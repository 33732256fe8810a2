// Package share turns a job into a self-contained link and back.
//
// The link carries a signed token in the "share" query parameter. Only the
// fields needed to reproduce the job on another device are included; the
// free-text narrative and all attachments never leave the working copy.
package share

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/garnizeh/dosecert/pkg/models"
)

// Param is the query parameter holding the token.
const Param = "share"

var ErrInvalidToken = errors.New("invalid share token")

type Codec struct {
	secret []byte
	now    func() time.Time
}

func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("share secret is required")
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// subset mirrors the shared JobRecord fields. No field is omitted when empty
// so every value round-trips exactly.
type subset struct {
	JobType             models.JobType     `json:"jobType"`
	ClientName          string             `json:"clientName"`
	ClientAddress       string             `json:"clientAddress"`
	SiteName            string             `json:"siteName"`
	SiteAddress         string             `json:"siteAddress"`
	ServiceDate         string             `json:"serviceDate"`
	Technician          string             `json:"technician"`
	Disinfectant        string             `json:"disinfectant"`
	ChemicalStrength    string             `json:"chemicalStrength"`
	ConcentrationTarget string             `json:"concentrationTarget"`
	ContactTime         string             `json:"contactTime"`
	SystemVolume        string             `json:"systemVolume"`
	AmountAdded         string             `json:"amountAdded"`
	NeutralisingAgent   string             `json:"neutralisingAgent"`
	PreFlushDuration    string             `json:"preFlushDuration"`
	InjectionPoint      string             `json:"injectionPoint"`
	IncomingMainsPh     string             `json:"incomingMainsPh"`
	ResidualLevel       string             `json:"residualLevel"`
	TestPoints          []models.TestPoint `json:"testPoints"`
	Tanks               []models.Tank      `json:"tanks"`
}

type claims struct {
	Job subset `json:"job"`
	jwt.RegisteredClaims
}

func fromJob(j *models.JobRecord) subset {
	s := subset{
		JobType:             j.JobType,
		ClientName:          j.ClientName,
		ClientAddress:       j.ClientAddress,
		SiteName:            j.SiteName,
		SiteAddress:         j.SiteAddress,
		ServiceDate:         j.ServiceDate,
		Technician:          j.Technician,
		Disinfectant:        j.Disinfectant,
		ChemicalStrength:    j.ChemicalStrength,
		ConcentrationTarget: j.ConcentrationTarget,
		ContactTime:         j.ContactTime,
		SystemVolume:        j.SystemVolume,
		AmountAdded:         j.AmountAdded,
		NeutralisingAgent:   j.NeutralisingAgent,
		PreFlushDuration:    j.PreFlushDuration,
		InjectionPoint:      j.InjectionPoint,
		IncomingMainsPh:     j.IncomingMainsPh,
		ResidualLevel:       j.ResidualLevel,
		TestPoints:          append([]models.TestPoint{}, j.TestPoints...),
		Tanks:               append([]models.Tank{}, j.Tanks...),
	}
	return s
}

func (s subset) job() *models.JobRecord {
	j := models.NewJobRecord()
	j.JobType = s.JobType
	j.ClientName = s.ClientName
	j.ClientAddress = s.ClientAddress
	j.SiteName = s.SiteName
	j.SiteAddress = s.SiteAddress
	j.ServiceDate = s.ServiceDate
	j.Technician = s.Technician
	j.Disinfectant = s.Disinfectant
	j.ChemicalStrength = s.ChemicalStrength
	j.ConcentrationTarget = s.ConcentrationTarget
	j.ContactTime = s.ContactTime
	j.SystemVolume = s.SystemVolume
	j.AmountAdded = s.AmountAdded
	j.NeutralisingAgent = s.NeutralisingAgent
	j.PreFlushDuration = s.PreFlushDuration
	j.InjectionPoint = s.InjectionPoint
	j.IncomingMainsPh = s.IncomingMainsPh
	j.ResidualLevel = s.ResidualLevel
	if s.TestPoints != nil {
		j.TestPoints = s.TestPoints
	}
	if s.Tanks != nil {
		j.Tanks = s.Tanks
	}
	return j
}

// Encode returns the signed token for job.
func (c *Codec) Encode(job *models.JobRecord) (string, error) {
	if job == nil {
		return "", errors.New("share: job is nil")
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Job:              fromJob(job),
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(c.now())},
	})
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign share token: %w", err)
	}
	return signed, nil
}

// Link returns pageURL with the share parameter set to job's token.
func (c *Codec) Link(pageURL string, job *models.JobRecord) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	token, err := c.Encode(job)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(Param, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DecodeToken verifies token and rebuilds the job. Fields missing from the
// token keep the defaults of a new job.
func (c *Codec) DecodeToken(token string) (*models.JobRecord, error) {
	cl := &claims{Job: fromJob(models.NewJobRecord())}
	_, err := jwt.ParseWithClaims(token, cl, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return cl.Job.job(), nil
}

// Decode reads the share parameter from rawURL. It returns nil when the URL
// carries no usable token.
func (c *Codec) Decode(rawURL string) *models.JobRecord {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	token := u.Query().Get(Param)
	if token == "" {
		return nil
	}
	job, err := c.DecodeToken(token)
	if err != nil {
		return nil
	}
	return job
}

// StripShareParam returns rawURL without the share parameter, for replacing
// the visible address once the job is loaded.
func StripShareParam(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if !q.Has(Param) {
		return rawURL
	}
	q.Del(Param)
	u.RawQuery = q.Encode()
	return u.String()
}
