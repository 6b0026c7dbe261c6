package fhir

import (
	"encoding/json"
	"testing"
)

func TestNewSearchBundle(t *testing.T) {
	resources := []map[string]interface{}{
		{"resourceType": "Patient", "id": "p1", "active": true},
		{"resourceType": "Patient", "id": "p2", "active": false},
	}

	b := NewSearchBundle(resources, 10, "https://hms.example.com/fhir")

	if b.ResourceType != "Bundle" || b.Type != "searchset" {
		t.Errorf("unexpected bundle header: %s/%s", b.ResourceType, b.Type)
	}
	if b.Total == nil || *b.Total != 10 {
		t.Errorf("expected total 10, got %v", b.Total)
	}
	if len(b.Entry) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(b.Entry))
	}
	if b.Entry[0].FullURL != "https://hms.example.com/fhir/Patient/p1" {
		t.Errorf("unexpected fullUrl: %s", b.Entry[0].FullURL)
	}
	if b.Entry[0].Search.Mode != "match" {
		t.Errorf("expected search mode match, got %s", b.Entry[0].Search.Mode)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b.Entry[1].Resource, &decoded); err != nil {
		t.Fatalf("entry resource is not valid JSON: %v", err)
	}
	if decoded["id"] != "p2" {
		t.Errorf("expected entry resource id p2, got %v", decoded["id"])
	}
}

func TestNewSearchBundleMissingIdentity(t *testing.T) {
	resources := []map[string]interface{}{
		{"active": true},
	}
	b := NewSearchBundle(resources, 1, "https://hms.example.com/fhir")
	if b.Entry[0].FullURL != "" {
		t.Errorf("expected empty fullUrl for resource without identity, got %s", b.Entry[0].FullURL)
	}
}

func TestNotFoundOutcome(t *testing.T) {
	o := NotFoundOutcome("Appointment", "abc")
	if o.ResourceType != "OperationOutcome" {
		t.Errorf("unexpected resourceType %s", o.ResourceType)
	}
	if len(o.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(o.Issue))
	}
	if o.Issue[0].Code != "not-found" {
		t.Errorf("expected code not-found, got %s", o.Issue[0].Code)
	}
}

func TestNewCapabilityStatement(t *testing.T) {
	cs := NewCapabilityStatement("hms", "1.0.0", []CapabilityResource{
		CreatableResource("Patient"),
		ReadOnlyResource("Appointment"),
	})
	if cs.FHIRVersion != "4.0.1" {
		t.Errorf("unexpected fhirVersion %s", cs.FHIRVersion)
	}
	if len(cs.Rest) != 1 || len(cs.Rest[0].Resource) != 2 {
		t.Fatalf("unexpected rest shape")
	}
	if cs.Rest[0].Resource[0].Type != "Patient" {
		t.Errorf("expected Patient first, got %s", cs.Rest[0].Resource[0].Type)
	}
	codes := map[string]bool{}
	for _, ix := range cs.Rest[0].Resource[0].Interaction {
		codes[ix.Code] = true
	}
	if !codes["create"] {
		t.Error("expected Patient to support create")
	}
	if len(cs.Rest[0].Resource[1].Interaction) != 2 {
		t.Errorf("expected Appointment to be read-only")
	}
}
