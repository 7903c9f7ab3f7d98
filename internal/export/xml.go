package export

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"

	"github.com/himanishpuri/IntroMatch/internal/batch"
	"github.com/himanishpuri/IntroMatch/pkg/models"
)

// SophoraNamespace is the namespace of the CMS import format.
const SophoraNamespace = "http://www.sophoracms.com/import/5.0"

type empty struct{}

type xmlDocuments struct {
	XMLName   xml.Name      `xml:"documents"`
	Xmlns     string        `xml:"xmlns,attr"`
	Documents []xmlDocument `xml:"document"`
}

type xmlDocument struct {
	NodeType     string          `xml:"nodeType,attr"`
	ExternalID   string          `xml:"externalID,attr"`
	Properties   empty           `xml:"properties"`
	ChildNodes   []xmlJumpLabel  `xml:"childNodes>childNode"`
	ResourceList empty           `xml:"resourceList"`
	Fields       xmlFields       `xml:"fields"`
	Instructions xmlInstructions `xml:"instructions"`
}

type xmlJumpLabel struct {
	NodeType     string        `xml:"nodeType,attr"`
	Name         string        `xml:"name,attr"`
	Properties   []xmlProperty `xml:"properties>property"`
	ChildNodes   empty         `xml:"childNodes"`
	ResourceList empty         `xml:"resourceList"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type xmlFields struct {
	Site          empty `xml:"site"`
	StructureNode empty `xml:"structureNode"`
	IDStem        empty `xml:"idstem"`
	ForceLock     struct {
		Timeout int    `xml:"timeout,attr"`
		Value   string `xml:",chardata"`
	} `xml:"forceLock"`
	ForceCreate string `xml:"forceCreate"`
	Channels    struct {
		Enabled  empty `xml:"enabledChannels"`
		Disabled empty `xml:"disabledChannels"`
	} `xml:"channels"`
}

type xmlActivity struct {
	Type string `xml:"type,attr"`
}

type xmlInstructions struct {
	Lifecycle   []xmlActivity `xml:"lifecycleActivities>lifecycleActivity"`
	Proposals   empty         `xml:"proposals"`
	StickyNotes empty         `xml:"stickyNotes"`
}

// jumpLabel builds one INTRO or OUTRO row.
func jumpLabel(kind string, durationS int, at string) xmlJumpLabel {
	return xmlJumpLabel{
		NodeType: "unified-nt:jumpLabelRow",
		Name:     "unified:jumpLabelRow",
		Properties: []xmlProperty{
			{Name: "unified:jumpLabelDuration", Value: strconv.Itoa(durationS)},
			{Name: "unified:jumpLabelTime", Value: at},
			{Name: "unified:jumpLabelType", Value: kind},
		},
	}
}

func fixedOrZero(v *float64) string {
	if v == nil {
		return "00:00:00"
	}
	return batch.FormatHHMMSSFixed(*v)
}

func roundOrZero(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return int(math.Round(*v))
}

// xmlDocumentFor maps one analysis to a CMS video update. timing is the
// reference timing of the pattern the row was matched against.
func xmlDocumentFor(a *models.Analysis, timing *models.ReferenceTiming) xmlDocument {
	externalID := a.Meta.ExternalID
	if externalID == "" {
		externalID = a.Meta.CMSID
	}

	introDur, outroDur := 0, 0
	if timing != nil {
		introDur = roundOrZero(&timing.IntroDurationS)
		outroDur = roundOrZero(timing.OutroDurationS)
	}
	if outroDur == 0 && a.DurationS != nil && a.OutroStartS != nil {
		outroDur = int(math.Max(0, math.Round(*a.DurationS-*a.OutroStartS)))
	}

	doc := xmlDocument{
		NodeType:   "unified-nt:video",
		ExternalID: externalID,
		ChildNodes: []xmlJumpLabel{
			jumpLabel("INTRO", introDur, fixedOrZero(a.IntroStartS)),
			jumpLabel("OUTRO", outroDur, fixedOrZero(a.OutroStartS)),
		},
	}
	doc.Fields.ForceLock.Timeout = 10
	doc.Fields.ForceLock.Value = "true"
	doc.Fields.ForceCreate = "false"
	doc.Instructions.Lifecycle = []xmlActivity{{Type: "keepState"}}
	return doc
}

// WriteXML writes a CMS update document with one video per successful row.
// timings maps pattern names to their reference timing.
func WriteXML(w io.Writer, rows []models.Analysis, timings map[string]models.ReferenceTiming) error {
	out := xmlDocuments{Xmlns: SophoraNamespace}
	for i := range rows {
		a := &rows[i]
		if a.Failed() {
			continue
		}
		var timing *models.ReferenceTiming
		if t, ok := timings[a.PatternName]; ok {
			timing = &t
		}
		out.Documents = append(out.Documents, xmlDocumentFor(a, timing))
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
