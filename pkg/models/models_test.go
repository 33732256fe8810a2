package models_test

import (
	"testing"

	"github.com/garnizeh/dosecert/pkg/models"
)

func TestNewJobRecordDefaults(t *testing.T) {
	j := models.NewJobRecord()
	if j.JobType != models.JobTypePipework {
		t.Fatalf("unexpected job type %q", j.JobType)
	}
	if j.Disinfectant != "Sodium Hypochlorite" || j.ChemicalStrength != "14" || j.ConcentrationTarget != "50" {
		t.Fatalf("unexpected chemistry defaults: %#v", j)
	}
	if j.ContactTime != "1 Hour" || j.NeutralisingAgent != "Sodium Thiosulphate" {
		t.Fatalf("unexpected defaults: %#v", j)
	}
	if j.TestPoints == nil || j.Tanks == nil {
		t.Fatalf("collections should be empty, not nil")
	}
	if j.HasIdentity() {
		t.Fatalf("fresh job should have no identity")
	}
}

func TestProjectName(t *testing.T) {
	cases := []struct {
		client, site, want string
	}{
		{"Acme", "Plant 2", "Acme - Plant 2"},
		{"Acme", "", "Acme"},
		{"", "Plant 2", "Plant 2"},
		{"  ", " ", models.UntitledProject},
	}
	for _, c := range cases {
		j := models.NewJobRecord()
		j.ClientName, j.SiteName = c.client, c.site
		if got := j.ProjectName(); got != c.want {
			t.Fatalf("ProjectName(%q,%q) = %q, want %q", c.client, c.site, got, c.want)
		}
	}
}

func TestHasIdentity(t *testing.T) {
	var nilJob *models.JobRecord
	if nilJob.HasIdentity() {
		t.Fatalf("nil job has no identity")
	}
	j := models.NewJobRecord()
	j.SiteName = "Depot"
	if !j.HasIdentity() {
		t.Fatalf("site name alone is an identity")
	}
}

func TestTestPointsAndTanks(t *testing.T) {
	j := models.NewJobRecord()
	a := j.AddTestPoint()
	b := j.AddTestPoint()
	if a == b || len(j.TestPoints) != 2 {
		t.Fatalf("expected two distinct test points")
	}
	if !j.RemoveTestPoint(a) || j.RemoveTestPoint(a) {
		t.Fatalf("remove should succeed once")
	}
	if len(j.TestPoints) != 1 || j.TestPoints[0].ID != b {
		t.Fatalf("wrong test point removed")
	}

	t1 := j.AddTank("Cold water storage", "1000")
	if len(j.Tanks) != 1 || j.Tanks[0].ID != t1 || j.Tanks[0].Capacity != "1000" {
		t.Fatalf("unexpected tanks: %#v", j.Tanks)
	}
	if !j.RemoveTank(t1) || len(j.Tanks) != 0 {
		t.Fatalf("tank not removed")
	}
}

func TestSyncTankPhotos(t *testing.T) {
	before := &models.Attachment{Name: "b.png", MIMEType: "image/png", Data: []byte{1}}
	tanks := []models.Tank{{ID: "t2"}, {ID: "t3"}}
	photos := []models.TankPhotos{
		{TankID: "t1", Before: before},
		{TankID: "t2", Before: before},
	}

	got := models.SyncTankPhotos(tanks, photos)
	if len(got) != 2 {
		t.Fatalf("expected one slot per tank, got %d", len(got))
	}
	if got[0].TankID != "t2" || got[0].Before != before {
		t.Fatalf("existing slot not kept: %#v", got[0])
	}
	if got[1].TankID != "t3" || got[1].Before != nil || got[1].After != nil {
		t.Fatalf("new tank should get an empty slot: %#v", got[1])
	}

	if out := models.SyncTankPhotos(nil, photos); len(out) != 0 {
		t.Fatalf("no tanks means no slots")
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	j := models.NewJobRecord()
	j.AddTestPoint()
	cp := j.Clone()
	cp.TestPoints[0].Location = "Kitchen"
	cp.AddTank("x", "1")
	if j.TestPoints[0].Location != "" || len(j.Tanks) != 0 {
		t.Fatalf("clone shares state with original")
	}

	var nilSet *models.AttachmentSet
	if s := nilSet.Clone(); s == nil || s.EvidencePhotos == nil {
		t.Fatalf("nil set should clone to an empty set")
	}
}
