package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/garnizeh/dosecert/pkg/models"
)

// ErrMalformed is returned when text is not a base64 data URI.
var ErrMalformed = errors.New("malformed attachment encoding")

const (
	dataPrefix   = "data:"
	base64Marker = ";base64"
)

// Encode renders an attachment as a base64 data URI. A nil attachment
// encodes to the empty string.
func Encode(a *models.Attachment) string {
	if a == nil {
		return ""
	}
	mime := a.MIMEType
	if mime == "" {
		mime = detect(a.Data)
	}
	return dataPrefix + mime + base64Marker + "," + base64.StdEncoding.EncodeToString(a.Data)
}

// Decode parses a data URI produced by Encode. When the URI does not name a
// MIME type it is derived from the payload.
func Decode(text, suggestedName string) (*models.Attachment, error) {
	if !strings.HasPrefix(text, dataPrefix) {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrMalformed)
	}
	header, payload, ok := strings.Cut(text[len(dataPrefix):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}
	if !strings.HasSuffix(header, base64Marker) {
		return nil, fmt.Errorf("%w: payload is not base64", ErrMalformed)
	}
	mime := strings.TrimSuffix(header, base64Marker)
	// drop parameters such as ";name=x" but keep the type itself
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if mime == "" {
		mime = detect(data)
	}

	return &models.Attachment{Name: fileName(suggestedName, mime), MIMEType: mime, Data: data}, nil
}

// detect sniffs the MIME type of data without any charset parameter.
func detect(data []byte) string {
	mime, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return mime
}

func fileName(name, mime string) string {
	if name == "" || path.Ext(name) != "" {
		return name
	}
	if m := mimetype.Lookup(mime); m != nil {
		return name + m.Extension()
	}
	return name
}

func decodeOptional(text, name string) (*models.Attachment, error) {
	if text == "" {
		return nil, nil
	}
	a, err := Decode(text, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}

// EncodeSet converts every attachment of the set into its text form.
func EncodeSet(set *models.AttachmentSet) models.SerializedImages {
	out := models.SerializedImages{
		EvidencePhotos: []models.SerializedEvidence{},
		TankPhotos:     []models.SerializedTankPhotos{},
	}
	if set == nil {
		return out
	}

	out.Logo = Encode(set.Logo)
	out.Header = Encode(set.Header)
	out.Footer = Encode(set.Footer)
	out.Certificate = Encode(set.Certificate)
	out.CoverPhoto = Encode(set.CoverPhoto)
	out.LabResults = Encode(set.LabResults)
	out.DosingSetup = Encode(set.DosingSetup)
	out.InitialChemical = Encode(set.InitialChemical)

	for _, e := range set.EvidencePhotos {
		out.EvidencePhotos = append(out.EvidencePhotos, models.SerializedEvidence{
			ID:      e.ID,
			Caption: e.Caption,
			File:    Encode(e.File),
		})
	}
	for _, tp := range set.TankPhotos {
		out.TankPhotos = append(out.TankPhotos, models.SerializedTankPhotos{
			TankID: tp.TankID,
			Before: Encode(tp.Before),
			After:  Encode(tp.After),
		})
	}

	return out
}

// DecodeSet is the inverse of EncodeSet. It fails as a whole on the first
// malformed attachment.
func DecodeSet(s models.SerializedImages) (*models.AttachmentSet, error) {
	set := &models.AttachmentSet{
		EvidencePhotos: []models.EvidencePhoto{},
		TankPhotos:     []models.TankPhotos{},
	}

	singles := []struct {
		text string
		name string
		dst  **models.Attachment
	}{
		{s.Logo, "logo", &set.Logo},
		{s.Header, "header", &set.Header},
		{s.Footer, "footer", &set.Footer},
		{s.Certificate, "certificate", &set.Certificate},
		{s.CoverPhoto, "cover-photo", &set.CoverPhoto},
		{s.LabResults, "lab-results", &set.LabResults},
		{s.DosingSetup, "dosing-setup", &set.DosingSetup},
		{s.InitialChemical, "initial-chemical", &set.InitialChemical},
	}
	for _, f := range singles {
		a, err := decodeOptional(f.text, f.name)
		if err != nil {
			return nil, err
		}
		*f.dst = a
	}

	for _, e := range s.EvidencePhotos {
		a, err := decodeOptional(e.File, "evidence-"+e.ID)
		if err != nil {
			return nil, err
		}
		set.EvidencePhotos = append(set.EvidencePhotos, models.EvidencePhoto{ID: e.ID, Caption: e.Caption, File: a})
	}

	for _, tp := range s.TankPhotos {
		before, err := decodeOptional(tp.Before, "tank-"+tp.TankID+"-before")
		if err != nil {
			return nil, err
		}
		after, err := decodeOptional(tp.After, "tank-"+tp.TankID+"-after")
		if err != nil {
			return nil, err
		}
		set.TankPhotos = append(set.TankPhotos, models.TankPhotos{TankID: tp.TankID, Before: before, After: after})
	}

	return set, nil
}
