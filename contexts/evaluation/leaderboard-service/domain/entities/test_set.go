package entities

import (
	"fmt"
	"strings"
	"time"
)

type TestSet struct {
	TestSetID      string
	Name           string
	SourceLanguage string
	TargetLanguage string
	IsActive       bool
	CreatedAt      time.Time
}

// Label is the human readable key used when grouping rankings.
func (t TestSet) Label() string {
	return fmt.Sprintf("%s (%s-%s)", t.Name, t.SourceLanguage, t.TargetLanguage)
}

func (t TestSet) ValidateCreate() bool {
	return strings.TrimSpace(t.TestSetID) != "" &&
		strings.TrimSpace(t.Name) != "" &&
		strings.TrimSpace(t.SourceLanguage) != "" &&
		strings.TrimSpace(t.TargetLanguage) != ""
}
