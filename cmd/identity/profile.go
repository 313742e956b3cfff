package identity

// ProfileSchemaVersion tags the profile JSON shape stored per user.
// Bump when a field changes meaning, not when fields are added.
const ProfileSchemaVersion = 1

// Goal is one tracked goal inside a user profile.
type Goal struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
	Done bool   `json:"done,omitempty"`
}

// RoomCard is a lightweight reference to a room shown on the user's board.
type RoomCard struct {
	RoomID string `json:"roomId"`
	Title  string `json:"title,omitempty"`
}

// Profile is the per-user data bag persisted as a single JSON document.
// Fields are client-owned state; the server validates shape, not meaning.
type Profile struct {
	SchemaVersion     int        `json:"schemaVersion,omitempty"`
	Goals             []Goal     `json:"goals,omitempty"`
	RemainingDaysPrev []string   `json:"remainingDaysPrev,omitempty"`
	RemainingDaysNow  []string   `json:"remainingDaysNow,omitempty"`
	ClickCounts       []int64    `json:"clickCounts,omitempty"`
	Rooms             []RoomCard `json:"rooms,omitempty"`
}

// ProfilePatch carries a partial profile update. Nil fields are left
// untouched; non-nil fields replace the stored value wholesale, including
// non-nil pointers to empty slices (which clear the field).
type ProfilePatch struct {
	Goals             *[]Goal
	RemainingDaysPrev *[]string
	RemainingDaysNow  *[]string
	ClickCounts       *[]int64
	Rooms             *[]RoomCard
}

// IsZero reports whether the patch changes nothing.
func (p ProfilePatch) IsZero() bool {
	return p.Goals == nil &&
		p.RemainingDaysPrev == nil &&
		p.RemainingDaysNow == nil &&
		p.ClickCounts == nil &&
		p.Rooms == nil
}

// Apply merges the patch into the profile and stamps the schema version.
func (pr *Profile) Apply(p ProfilePatch) {
	if p.Goals != nil {
		pr.Goals = *p.Goals
	}
	if p.RemainingDaysPrev != nil {
		pr.RemainingDaysPrev = *p.RemainingDaysPrev
	}
	if p.RemainingDaysNow != nil {
		pr.RemainingDaysNow = *p.RemainingDaysNow
	}
	if p.ClickCounts != nil {
		pr.ClickCounts = *p.ClickCounts
	}
	if p.Rooms != nil {
		pr.Rooms = *p.Rooms
	}
	pr.SchemaVersion = ProfileSchemaVersion
}
