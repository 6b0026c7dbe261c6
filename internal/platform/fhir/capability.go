package fhir

import "time"

// CapabilityStatement describes this server's FHIR surface. Served from
// GET /fhir/metadata.
type CapabilityStatement struct {
	ResourceType string             `json:"resourceType"`
	Status       string             `json:"status"`
	Date         string             `json:"date"`
	Kind         string             `json:"kind"`
	FHIRVersion  string             `json:"fhirVersion"`
	Format       []string           `json:"format"`
	Software     CapabilitySoftware `json:"software"`
	Rest         []CapabilityRest   `json:"rest"`
}

type CapabilitySoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type CapabilityRest struct {
	Mode     string               `json:"mode"`
	Resource []CapabilityResource `json:"resource"`
}

type CapabilityResource struct {
	Type        string                  `json:"type"`
	Interaction []CapabilityInteraction `json:"interaction"`
}

type CapabilityInteraction struct {
	Code string `json:"code"`
}

// ReadOnlyResource declares a resource served with read and search-type only.
func ReadOnlyResource(resourceType string) CapabilityResource {
	return CapabilityResource{
		Type: resourceType,
		Interaction: []CapabilityInteraction{
			{Code: "read"},
			{Code: "search-type"},
		},
	}
}

// CreatableResource declares a resource that additionally accepts create.
func CreatableResource(resourceType string) CapabilityResource {
	return CapabilityResource{
		Type: resourceType,
		Interaction: []CapabilityInteraction{
			{Code: "read"},
			{Code: "search-type"},
			{Code: "create"},
		},
	}
}

// NewCapabilityStatement builds the statement for the given software name,
// version, and served resources.
func NewCapabilityStatement(name, version string, resources []CapabilityResource) *CapabilityStatement {
	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format("2006-01-02"),
		Kind:         "instance",
		FHIRVersion:  "4.0.1",
		Format:       []string{"application/fhir+json", "application/json"},
		Software: CapabilitySoftware{
			Name:    name,
			Version: version,
		},
		Rest: []CapabilityRest{
			{Mode: "server", Resource: resources},
		},
	}
}
