package models

import (
	"strings"
	"time"
)

// Transaction is the immutable record of one accepted recycling deposit.
// Rows are only ever appended; nothing in the system mutates or deletes them.
type Transaction struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	AccountID            uint      `gorm:"not null;index" json:"account_id"`
	Account              Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	ObjectType           string    `gorm:"not null;size:50" json:"object_type"`
	PointsAwarded        int       `gorm:"not null" json:"points_awarded"`
	ClassifierLabel      *string   `gorm:"size:100" json:"classifier_label,omitempty"`
	ClassifierConfidence *float64  `json:"classifier_confidence,omitempty"`
	WeightKG             float64   `gorm:"column:weight_kg" json:"weight_kg"`
	CO2AvoidedKG         float64   `gorm:"column:co2_avoided_kg" json:"co2_avoided_kg"`
	ImagePath            *string   `gorm:"size:255" json:"image_path,omitempty"`
	CreatedAt            time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model.
func (Transaction) TableName() string {
	return "transactions"
}

// Impact holds the environmental footprint credited for one deposit.
type Impact struct {
	WeightKG     float64 `json:"weight_kg"`
	CO2AvoidedKG float64 `json:"co2_avoided_kg"`
}

// Per-object impact factors (weight kg, CO2 avoided kg). The object-type
// tags come from the machine's classifier configuration.
var impactFactors = map[string]Impact{
	"plastico_metal": {WeightKG: 0.025, CO2AvoidedKG: 0.05},
	"plastico":       {WeightKG: 0.025, CO2AvoidedKG: 0.05},
	"botella":        {WeightKG: 0.025, CO2AvoidedKG: 0.05},
	"metal":          {WeightKG: 0.015, CO2AvoidedKG: 0.03},
	"lata":           {WeightKG: 0.015, CO2AvoidedKG: 0.03},
}

// defaultImpact is credited for object types the table does not know.
// A deposit is never rejected because its tag is unrecognized.
var defaultImpact = Impact{WeightKG: 0.02, CO2AvoidedKG: 0.04}

// ImpactForObjectType looks up the environmental impact pair for an
// object-type tag, falling back to the default pair for unknown tags.
func ImpactForObjectType(objectType string) Impact {
	if impact, ok := impactFactors[strings.ToLower(objectType)]; ok {
		return impact
	}
	return defaultImpact
}
