package models

// Feedback kinds tracked per month.
const (
	FeedbackKindDocument = "document"
	FeedbackKindComment  = "comment"
)

// DocumentWeight is how many comments one document review is worth.
const DocumentWeight = 3

// MonthlyActivity holds a member's contribution counters for one reporting month.
type MonthlyActivity struct {
	MemberID             string `gorm:"primaryKey;size:64" json:"member_id"`
	MonthKey             string `gorm:"primaryKey;size:16;index" json:"month_key"`
	DocFeedbackCount     int64  `gorm:"not null;default:0" json:"doc_feedback_count"`
	CommentFeedbackCount int64  `gorm:"not null;default:0" json:"comment_feedback_count"`
}

// TableName specifies the table name for MonthlyActivity model.
func (MonthlyActivity) TableName() string {
	return "monthly_activity"
}

// WeightedScore returns the leaderboard score of the month.
func (a MonthlyActivity) WeightedScore() int64 {
	return WeightedScore(a.DocFeedbackCount, a.CommentFeedbackCount)
}

// WeightedScore weights documents three times as much as comments.
func WeightedScore(docs, comments int64) int64 {
	return docs*DocumentWeight + comments
}

// CounterColumn returns the monthly_activity column backing a feedback kind.
func CounterColumn(kind string) (string, bool) {
	switch kind {
	case FeedbackKindDocument:
		return "doc_feedback_count", true
	case FeedbackKindComment:
		return "comment_feedback_count", true
	default:
		return "", false
	}
}

// Pardon exempts a member from monthly quota enforcement. Existence is the semantic.
type Pardon struct {
	MemberID  string `gorm:"primaryKey;size:64" json:"member_id"`
	MonthKey  string `gorm:"primaryKey;size:16;index" json:"month_key"`
	Reason    string `gorm:"type:text;not null;default:'staff_discretion'" json:"reason"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`
}

// TableName specifies the table name for Pardon model.
func (Pardon) TableName() string {
	return "pardons"
}

// DefaultPardonReason is recorded when staff grant a pardon without a reason.
const DefaultPardonReason = "staff_discretion"
