package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTagsFromName(t *testing.T) {
	s := Stage{ID: "s1", Name: "Consult Complete"}
	s.ResolveTags()

	assert.True(t, s.HasTag(StageTagConsult))
	assert.True(t, s.HasTag(StageTagRevenue))
	assert.True(t, s.HasTag(StageTagAppointment))
	assert.False(t, s.HasTag(StageTagPatient))
}

func TestResolveTagsKeepsExplicitTags(t *testing.T) {
	s := Stage{ID: "s1", Name: "Lead", Tags: []string{StageTagPatient}}
	s.ResolveTags()

	assert.Equal(t, []string{StageTagPatient}, []string(s.Tags))
}

func TestResolveTagsUnknownNameStaysUntagged(t *testing.T) {
	s := Stage{ID: "s1", Name: "Renamed Consult"}
	s.ResolveTags()

	assert.Empty(t, s.Tags)
}

func TestDefaultStageTagsReturnsCopy(t *testing.T) {
	tags := DefaultStageTags("Patient")
	tags[0] = "mutated"

	assert.Equal(t, StageTagRevenue, DefaultStageTags("Patient")[0])
}

func TestStageIDsWithTag(t *testing.T) {
	stages := []Stage{
		{ID: "a", Tags: []string{StageTagRevenue}},
		{ID: "b", Tags: []string{StageTagLead}},
		{ID: "c", Tags: []string{StageTagRevenue, StageTagPatient}},
	}

	assert.Equal(t, []string{"a", "c"}, StageIDsWithTag(stages, StageTagRevenue))
	assert.Equal(t, []string{}, StageIDsWithTag(stages, StageTagCanceled))
}

func TestFindCustomFieldValue(t *testing.T) {
	fields := []CustomField{
		{ID: "other", FieldValueString: "x"},
		{ID: "treat", Type: "string", FieldValueString: "Rhinoplasty"},
	}

	v, ok := FindCustomFieldValue(fields, "treat")
	assert.True(t, ok)
	assert.Equal(t, "Rhinoplasty", v)

	_, ok = FindCustomFieldValue(fields, "missing")
	assert.False(t, ok)
}
