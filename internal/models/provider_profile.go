// internal/models/provider_profile.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ProviderProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	DisplayName string `gorm:"type:varchar(120)" json:"display_name"`
	PhotoURL    string `gorm:"type:text" json:"photo_url"`
	About       string `gorm:"type:text" json:"about"`
	ServiceType string `gorm:"type:varchar(80);index" json:"service_type"`

	// Skills is a JSON array of strings, e.g. ["plumbing","tiling"].
	Skills      datatypes.JSON `json:"skills"`
	ServiceRate int64          `json:"service_rate"` // base currency unit per job

	City string   `gorm:"type:varchar(120)" json:"city"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`

	Verified bool `gorm:"default:false" json:"verified"` // set by admin verification
	Online   bool `gorm:"default:false" json:"online"`   // available-now toggle

	Rating      float64 `gorm:"default:0" json:"rating"` // 0..5
	ReviewCount int     `gorm:"default:0" json:"review_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SkillList decodes the Skills JSON column. A malformed column yields nil
// rather than an error so matching just sees "no skills".
func (p *ProviderProfile) SkillList() []string {
	if len(p.Skills) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(p.Skills, &out); err != nil {
		return nil
	}
	return out
}

func SkillsJSON(skills []string) datatypes.JSON {
	b, _ := json.Marshal(skills)
	return datatypes.JSON(b)
}
