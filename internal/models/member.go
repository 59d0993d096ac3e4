// Package models defines the entities persisted by the feedback ledger.
package models

// DefaultRatingAverage is reported for members who have never been rated.
const DefaultRatingAverage = 2.0

// QualityRatings is the running peer-rating aggregate stored on a member.
// Average is always derived from Sum and Count.
type QualityRatings struct {
	Count   int64   `gorm:"not null;default:0" json:"count"`
	Sum     int64   `gorm:"not null;default:0" json:"sum"`
	Average float64 `gorm:"not null;default:2" json:"average"`
}

// Member is the canonical accounting row of a community member.
// Timestamps are epoch milliseconds.
type Member struct {
	MemberID             string         `gorm:"primaryKey;size:64" json:"member_id"`
	TotalFeedbackAllTime int64          `gorm:"not null;default:0;index" json:"total_feedback_all_time"`
	CurrentCredits       int64          `gorm:"not null;default:0" json:"current_credits"`
	ChapterLeases        int64          `gorm:"not null;default:0" json:"chapter_leases"`
	BookshelfPosts       int64          `gorm:"not null;default:0" json:"bookshelf_posts"`
	QualityRatings       QualityRatings `gorm:"embedded;embeddedPrefix:rating_" json:"quality_ratings"`
	LastActive           int64          `gorm:"not null;default:0" json:"last_active"`
	JoinDate             int64          `gorm:"not null;default:0" json:"join_date"`
	CreatedAt            int64          `gorm:"autoCreateTime:milli" json:"created_at"`
	UpdatedAt            int64          `gorm:"autoUpdateTime:milli" json:"updated_at"`

	// Dependent rows; deleting the member cascades to all of them.
	Activity        []MonthlyActivity `gorm:"foreignKey:MemberID;references:MemberID;constraint:OnDelete:CASCADE" json:"-"`
	Pardons         []Pardon          `gorm:"foreignKey:MemberID;references:MemberID;constraint:OnDelete:CASCADE" json:"-"`
	Cooldowns       []Cooldown        `gorm:"foreignKey:MemberID;references:MemberID;constraint:OnDelete:CASCADE" json:"-"`
	Purchases       []Purchase        `gorm:"foreignKey:MemberID;references:MemberID;constraint:OnDelete:CASCADE" json:"-"`
	RatingsReceived []QualityRating   `gorm:"foreignKey:RatedID;references:MemberID;constraint:OnDelete:CASCADE" json:"-"`
	RatingsGiven    []QualityRating   `gorm:"foreignKey:RaterID;references:MemberID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Member model.
func (Member) TableName() string {
	return "members"
}

// NewMember returns the zero-valued record reported for an unknown member.
func NewMember(memberID string) *Member {
	return &Member{
		MemberID:       memberID,
		QualityRatings: QualityRatings{Average: DefaultRatingAverage},
	}
}

// MemberUpdate carries the fields of a partial member update.
// Nil fields are left untouched on existing rows and zero on new ones.
type MemberUpdate struct {
	TotalFeedbackAllTime *int64 `json:"total_feedback_all_time,omitempty"`
	CurrentCredits       *int64 `json:"current_credits,omitempty"`
	ChapterLeases        *int64 `json:"chapter_leases,omitempty"`
	BookshelfPosts       *int64 `json:"bookshelf_posts,omitempty"`
	LastActive           *int64 `json:"last_active,omitempty"`
	JoinDate             *int64 `json:"join_date,omitempty"`
}

// Columns returns the column names set by the update.
func (u MemberUpdate) Columns() []string {
	var cols []string
	if u.TotalFeedbackAllTime != nil {
		cols = append(cols, "total_feedback_all_time")
	}
	if u.CurrentCredits != nil {
		cols = append(cols, "current_credits")
	}
	if u.ChapterLeases != nil {
		cols = append(cols, "chapter_leases")
	}
	if u.BookshelfPosts != nil {
		cols = append(cols, "bookshelf_posts")
	}
	if u.LastActive != nil {
		cols = append(cols, "last_active")
	}
	if u.JoinDate != nil {
		cols = append(cols, "join_date")
	}
	return cols
}

// Values returns the supplied fields keyed by column name.
func (u MemberUpdate) Values() map[string]interface{} {
	values := make(map[string]interface{})
	if u.TotalFeedbackAllTime != nil {
		values["total_feedback_all_time"] = *u.TotalFeedbackAllTime
	}
	if u.CurrentCredits != nil {
		values["current_credits"] = *u.CurrentCredits
	}
	if u.ChapterLeases != nil {
		values["chapter_leases"] = *u.ChapterLeases
	}
	if u.BookshelfPosts != nil {
		values["bookshelf_posts"] = *u.BookshelfPosts
	}
	if u.LastActive != nil {
		values["last_active"] = *u.LastActive
	}
	if u.JoinDate != nil {
		values["join_date"] = *u.JoinDate
	}
	return values
}

// Apply copies the supplied fields onto m.
func (u MemberUpdate) Apply(m *Member) {
	if u.TotalFeedbackAllTime != nil {
		m.TotalFeedbackAllTime = *u.TotalFeedbackAllTime
	}
	if u.CurrentCredits != nil {
		m.CurrentCredits = *u.CurrentCredits
	}
	if u.ChapterLeases != nil {
		m.ChapterLeases = *u.ChapterLeases
	}
	if u.BookshelfPosts != nil {
		m.BookshelfPosts = *u.BookshelfPosts
	}
	if u.LastActive != nil {
		m.LastActive = *u.LastActive
	}
	if u.JoinDate != nil {
		m.JoinDate = *u.JoinDate
	}
}

// Int64 returns a pointer to v, for building MemberUpdate literals.
func Int64(v int64) *int64 {
	return &v
}
