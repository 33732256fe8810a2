package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain models for a disinfection job. Numeric form fields are kept as the
// strings the technician typed; parsing belongs to internal/dosing.

type JobType string

const (
	JobTypePipework JobType = "Pipework"
	JobTypeTank     JobType = "Tank"
)

const (
	DefaultDisinfectant        = "Sodium Hypochlorite"
	DefaultChemicalStrength    = "14"
	DefaultConcentrationTarget = "50"
	DefaultContactTime         = "1 Hour"
	DefaultNeutralisingAgent   = "Sodium Thiosulphate"
	UntitledProject            = "Untitled Project"
)

type TestPoint struct {
	ID         string `json:"id"`
	Location   string `json:"location"`
	System     string `json:"system"`
	Time       string `json:"time"`
	PH         string `json:"ph"`
	InitialPPM string `json:"initialPpm"`
	PPM30Min   string `json:"ppm30Min"`
	PPM1Hour   string `json:"ppm1Hour"`
}

type Tank struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Capacity    string `json:"capacity"`
}

type JobRecord struct {
	JobType             JobType     `json:"jobType"`
	ClientName          string      `json:"clientName"`
	ClientAddress       string      `json:"clientAddress"`
	SiteName            string      `json:"siteName"`
	SiteAddress         string      `json:"siteAddress"`
	ServiceDate         string      `json:"serviceDate"`
	Technician          string      `json:"technician"`
	Disinfectant        string      `json:"disinfectant"`
	ChemicalStrength    string      `json:"chemicalStrength"`
	ConcentrationTarget string      `json:"concentrationTarget"`
	ContactTime         string      `json:"contactTime"`
	SystemVolume        string      `json:"systemVolume"`
	AmountAdded         string      `json:"amountAdded"`
	NeutralisingAgent   string      `json:"neutralisingAgent"`
	PreFlushDuration    string      `json:"preFlushDuration"`
	InjectionPoint      string      `json:"injectionPoint"`
	IncomingMainsPh     string      `json:"incomingMainsPh"`
	ResidualLevel       string      `json:"residualLevel"`
	ScopeOfWorks        string      `json:"scopeOfWorks"`
	Comments            string      `json:"comments"`
	TestPoints          []TestPoint `json:"testPoints"`
	Tanks               []Tank      `json:"tanks"`
}

// NewJobRecord returns the defaults used for a brand-new job.
func NewJobRecord() *JobRecord {
	return &JobRecord{
		JobType:             JobTypePipework,
		Disinfectant:        DefaultDisinfectant,
		ChemicalStrength:    DefaultChemicalStrength,
		ConcentrationTarget: DefaultConcentrationTarget,
		ContactTime:         DefaultContactTime,
		NeutralisingAgent:   DefaultNeutralisingAgent,
		TestPoints:          []TestPoint{},
		Tanks:               []Tank{},
	}
}

// HasIdentity reports whether the job carries enough to be worth autosaving.
func (j *JobRecord) HasIdentity() bool {
	if j == nil {
		return false
	}
	return strings.TrimSpace(j.ClientName) != "" || strings.TrimSpace(j.SiteName) != ""
}

// ProjectName derives the display name stored with a snapshot.
func (j *JobRecord) ProjectName() string {
	client := strings.TrimSpace(j.ClientName)
	site := strings.TrimSpace(j.SiteName)
	switch {
	case client != "" && site != "":
		return client + " - " + site
	case client != "":
		return client
	case site != "":
		return site
	}
	return UntitledProject
}

// AddTestPoint appends an empty test point and returns its id.
func (j *JobRecord) AddTestPoint() string {
	tp := TestPoint{ID: uuid.NewString()}
	j.TestPoints = append(j.TestPoints, tp)
	return tp.ID
}

func (j *JobRecord) RemoveTestPoint(id string) bool {
	for i := range j.TestPoints {
		if j.TestPoints[i].ID == id {
			j.TestPoints = append(j.TestPoints[:i], j.TestPoints[i+1:]...)
			return true
		}
	}
	return false
}

// AddTank appends a tank with a fresh stable id.
func (j *JobRecord) AddTank(description, capacity string) string {
	t := Tank{ID: uuid.NewString(), Description: description, Capacity: capacity}
	j.Tanks = append(j.Tanks, t)
	return t.ID
}

func (j *JobRecord) RemoveTank(id string) bool {
	for i := range j.Tanks {
		if j.Tanks[i].ID == id {
			j.Tanks = append(j.Tanks[:i], j.Tanks[i+1:]...)
			return true
		}
	}
	return false
}

// Attachment is an opaque binary blob tagged with a MIME type.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

type EvidencePhoto struct {
	ID      string      `json:"id"`
	Caption string      `json:"caption"`
	File    *Attachment `json:"-"`
}

type TankPhotos struct {
	TankID string      `json:"tankId"`
	Before *Attachment `json:"-"`
	After  *Attachment `json:"-"`
}

type AttachmentSet struct {
	Logo            *Attachment
	Header          *Attachment
	Footer          *Attachment
	Certificate     *Attachment
	CoverPhoto      *Attachment
	LabResults      *Attachment
	DosingSetup     *Attachment
	InitialChemical *Attachment
	EvidencePhotos  []EvidencePhoto
	TankPhotos      []TankPhotos
}

// EnsureTankIDs gives every tank with an empty or repeated id a fresh one,
// in place. The first tank holding an id keeps it.
func EnsureTankIDs(tanks []Tank) {
	seen := make(map[string]bool, len(tanks))
	for i := range tanks {
		if tanks[i].ID == "" || seen[tanks[i].ID] {
			tanks[i].ID = uuid.NewString()
		}
		seen[tanks[i].ID] = true
	}
}

// SyncTankPhotos returns the photo slots matching tanks one to one, in tank
// order. Slots for known tanks are kept, new tanks get an empty slot and
// slots for removed tanks are dropped.
func SyncTankPhotos(tanks []Tank, photos []TankPhotos) []TankPhotos {
	byID := make(map[string]TankPhotos, len(photos))
	for _, p := range photos {
		byID[p.TankID] = p
	}
	out := make([]TankPhotos, 0, len(tanks))
	for _, t := range tanks {
		if p, ok := byID[t.ID]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, TankPhotos{TankID: t.ID})
	}
	return out
}

// SerializedImages is the text-safe form of an AttachmentSet. Empty strings
// mean the attachment is absent.
type SerializedImages struct {
	Logo            string                 `json:"logo,omitempty"`
	Header          string                 `json:"header,omitempty"`
	Footer          string                 `json:"footer,omitempty"`
	Certificate     string                 `json:"certificate,omitempty"`
	CoverPhoto      string                 `json:"coverPhoto,omitempty"`
	LabResults      string                 `json:"labResults,omitempty"`
	DosingSetup     string                 `json:"dosingSetup,omitempty"`
	InitialChemical string                 `json:"initialChemical,omitempty"`
	EvidencePhotos  []SerializedEvidence   `json:"evidencePhotos"`
	TankPhotos      []SerializedTankPhotos `json:"tankPhotos"`
}

type SerializedEvidence struct {
	ID      string `json:"id"`
	Caption string `json:"caption"`
	File    string `json:"file"`
}

type SerializedTankPhotos struct {
	TankID string `json:"tankId"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// ProjectSnapshot is one named, versioned save of a job.
type ProjectSnapshot struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	ClientName string           `json:"clientName"`
	SiteName   string           `json:"siteName"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Data       JobRecord        `json:"data"`
	Images     SerializedImages `json:"images"`
}

type ProjectSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ClientName  string    `json:"clientName"`
	SiteName    string    `json:"siteName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ImagesBytes int64     `json:"imagesBytes"`
}

type DraftSlot struct {
	Timestamp time.Time        `json:"timestamp"`
	Data      JobRecord        `json:"data"`
	Images    SerializedImages `json:"images"`
}

// Clone returns a copy that shares no slices with j.
func (j *JobRecord) Clone() *JobRecord {
	if j == nil {
		return nil
	}
	cp := *j
	cp.TestPoints = append([]TestPoint{}, j.TestPoints...)
	cp.Tanks = append([]Tank{}, j.Tanks...)
	return &cp
}

// Clone copies the set structure. Attachment payloads are shared; they are
// replaced, never modified in place.
func (s *AttachmentSet) Clone() *AttachmentSet {
	if s == nil {
		return &AttachmentSet{EvidencePhotos: []EvidencePhoto{}, TankPhotos: []TankPhotos{}}
	}
	cp := *s
	cp.EvidencePhotos = append([]EvidencePhoto{}, s.EvidencePhotos...)
	cp.TankPhotos = append([]TankPhotos{}, s.TankPhotos...)
	return &cp
}
