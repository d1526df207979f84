package domain

// User is read-only for the confirmation engine; it only needs a display
// identity when deriving short codes. Profile management lives elsewhere.
type User struct {
	ID       string `json:"id" gorm:"type:char(36);primaryKey"`
	Email    string `json:"email" gorm:"size:191;not null;uniqueIndex"`
	FullName string `json:"fullName"`
}
