package chunker

import (
	"reflect"
	"testing"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(nil, false)
	tests := []struct {
		line string
		want LineKind
	}{
		{"1. Introduction", Header{Level: 1, Label: "1. Introduction"}},
		{"1 Introduction", Header{Level: 1, Label: "1 Introduction"}},
		{"1.1 History", Header{Level: 2, Label: "1.1 History"}},
		{"2.3.4. Deep Section", Header{Level: 3, Label: "2.3.4. Deep Section"}},
		{"  [3]  ", Header{Level: 1, Label: "[3]"}},
		{"[12] References", Header{Level: 1, Label: "[12] References"}},
		{"SUBJECT: NETWORKS", SubjectMarker{Subject: "NETWORKS"}},
		{"subject :  Operating Systems ", SubjectMarker{Subject: "Operating Systems"}},
		{"Subject - Databases", SubjectMarker{Subject: "Databases"}},
		{"1. SUBJECT: Compilers", SubjectMarker{Subject: "Compilers"}},
		{"Subject-matter experts agree.", Body{}},
		{"SUBJECT:", Body{}},
		{"3 items were shipped", Body{}},
		{"2024 was a good year", Body{}},
		{"1000. Not a header", Body{}},
		{"Plain sentence.", Body{}},
		{"TERMS AND CONDITIONS", Body{}},
		{"", Body{}},
	}
	for _, tt := range tests {
		got := c.Classify(tt.line)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := NewClassifier([]string{"TOPIC", "COURSE"}, false)
	if got := c.Classify("Course: Physics"); !reflect.DeepEqual(got, SubjectMarker{Subject: "Physics"}) {
		t.Errorf("expected COURSE marker, got %#v", got)
	}
	if got := c.Classify("SUBJECT: Physics"); !reflect.DeepEqual(got, Body{}) {
		t.Errorf("expected Body for unconfigured keyword, got %#v", got)
	}
}

func TestClassifier_EmphaticHeaders(t *testing.T) {
	c := NewClassifier(nil, true)
	tests := []struct {
		line string
		want LineKind
	}{
		{"TERMS AND CONDITIONS", Header{Level: 1, Label: "TERMS AND CONDITIONS"}},
		{"ANNUAL REPORT 2023", Body{}},
		{"PAGE 4", Body{}},
		{"OK", Body{}},
		{"Mixed Case Title", Body{}},
	}
	for _, tt := range tests {
		got := c.Classify(tt.line)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}
