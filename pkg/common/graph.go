package common

import (
	"fmt"

	"github.com/google/uuid"
)

// AnnotationGraph names the triple graph holding the facts of one annotation
// group. A new version of the annotation replaces the whole graph.
func AnnotationGraph(groupID uuid.UUID) string {
	return "urn:ethicase:annotation:" + groupID.String()
}

// SectionURI is the triple subject for a document section.
func SectionURI(sectionID int64) string {
	return fmt.Sprintf("urn:ethicase:section:%d", sectionID)
}
