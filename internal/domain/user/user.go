package user

import "time"

// User mirrors an identity from the external auth provider. ID is the provider's
// subject and never changes.
type User struct {
	ID       string `gorm:"type:text;primaryKey" json:"id"`
	Email    string `gorm:"column:email;type:text" json:"email,omitempty"`
	Name     string `gorm:"column:name;type:text" json:"name,omitempty"`
	ImageURL string `gorm:"column:image_url;type:text" json:"imageUrl,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "user_profile" }
