package models

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 4
)

// QualityRating is a single peer rating of a feedback message.
// A rater may rate a given message of a member only once.
type QualityRating struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	RatedID           string `gorm:"size:64;not null;uniqueIndex:idx_quality_rating_unique,priority:1" json:"rated_id"`
	RaterID           string `gorm:"size:64;not null;index;uniqueIndex:idx_quality_rating_unique,priority:2" json:"rater_id"`
	FeedbackMessageID string `gorm:"size:64;not null;uniqueIndex:idx_quality_rating_unique,priority:3" json:"feedback_message_id"`
	Rating            int    `gorm:"not null;check:chk_quality_rating_range,rating BETWEEN 1 AND 4" json:"rating"`
	CreatedAt         int64  `gorm:"autoCreateTime:milli" json:"created_at"`
}

// TableName specifies the table name for QualityRating model.
func (QualityRating) TableName() string {
	return "quality_ratings"
}

// IsValidRating reports whether r is within the accepted range.
func IsValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
