// Package model defines the lead records that flow through the ingestion
// pipeline and the run report returned to callers.
package model

import "time"

// LeadType classifies where a candidate lead came from.
type LeadType string

const (
	LeadTypeTender  LeadType = "public_tender"
	LeadTypeCompany LeadType = "company"
	LeadTypeJob     LeadType = "job_posting"
)

// Valid reports whether t is a known lead type.
func (t LeadType) Valid() bool {
	switch t {
	case LeadTypeTender, LeadTypeCompany, LeadTypeJob:
		return true
	}
	return false
}

// ProjectType is the building-systems category inferred from lead text.
type ProjectType string

const (
	ProjectNone        ProjectType = ""
	ProjectGTB         ProjectType = "GTB"
	ProjectGTEB        ProjectType = "GTEB"
	ProjectHVAC        ProjectType = "hvac"
	ProjectSupervision ProjectType = "supervision"
	ProjectElectrical  ProjectType = "electrical"
	ProjectAutomation  ProjectType = "automation"
	ProjectMixed       ProjectType = "mixed"
)

// IsNiche reports whether p is one of the two core building-management types.
func (p ProjectType) IsNiche() bool {
	return p == ProjectGTB || p == ProjectGTEB
}

// IsSecondary reports whether p is an adjacent trade (HVAC, supervision, electrical).
func (p ProjectType) IsSecondary() bool {
	return p == ProjectHVAC || p == ProjectSupervision || p == ProjectElectrical
}

// Sector is the activity sector of the organization behind a lead.
type Sector string

const (
	SectorHospital    Sector = "hospital"
	SectorIndustry    Sector = "industry"
	SectorTertiary    Sector = "tertiary"
	SectorPublic      Sector = "public"
	SectorResidential Sector = "residential"
	SectorOther       Sector = "other"
)

// SizeClass is the inferred organization size.
type SizeClass string

const (
	SizeLarge   SizeClass = "large"
	SizeMedium  SizeClass = "medium"
	SizeSmall   SizeClass = "small"
	SizeUnknown SizeClass = "unknown"
)

// Temperature buckets a score into cold, warm and hot.
type Temperature string

const (
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

// Valid reports whether t is one of the three buckets.
func (t Temperature) Valid() bool {
	return t == TemperatureCold || t == TemperatureWarm || t == TemperatureHot
}

// RawLeadRecord is a candidate lead as emitted by a source connector.
// Connectors must not mutate a record after returning it.
type RawLeadRecord struct {
	Source           string         `json:"source,omitempty"`
	LeadType         LeadType       `json:"lead_type"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	OrganizationName string         `json:"organization_name,omitempty"`
	Website          string         `json:"website,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	Email            string         `json:"email,omitempty"`
	City             string         `json:"city,omitempty"`
	Country          string         `json:"country,omitempty"`
	MarketDate       *time.Time     `json:"market_date,omitempty"`
	Budget           *float64       `json:"budget,omitempty"`
	MarketURL        string         `json:"market_url,omitempty"`
	SourceURL        string         `json:"source_url,omitempty"`
	Keywords         []string       `json:"keywords_found,omitempty"`
	RawMetadata      map[string]any `json:"raw_data,omitempty"`
}

// NormalizedLead is a RawLeadRecord with canonical names, places and
// contact fields plus the inferred project type.
type NormalizedLead struct {
	RawLeadRecord
	ProjectType ProjectType `json:"project_type,omitempty"`
}

// EnrichedLead adds inferred sector and size class to a NormalizedLead.
type EnrichedLead struct {
	NormalizedLead
	Sector    Sector    `json:"sector"`
	SizeClass SizeClass `json:"company_size"`
}

// ScoreResult is the output of the scorer for one lead.
type ScoreResult struct {
	Score         int         `json:"score"`
	Temperature   Temperature `json:"temperature"`
	Factors       []string    `json:"factors"`
	Justification string      `json:"justification"`
}

// Lead is the persisted catalog entity.
type Lead struct {
	ID string `json:"id"`
	EnrichedLead
	Score          int         `json:"score"`
	Temperature    Temperature `json:"temperature"`
	Justification  string      `json:"score_justification"`
	IsContacted    bool        `json:"is_contacted"`
	IsConverted    bool        `json:"is_converted"`
	Notes          string      `json:"notes,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LastAnalyzedAt *time.Time  `json:"last_analyzed_at,omitempty"`
}

// Field length limits enforced before persistence.
const (
	MaxTitleLen        = 500
	MaxOrganizationLen = 255
	MaxDescriptionLen  = 5000
	MaxPhoneLen        = 50
	MaxCityLen         = 100
)
