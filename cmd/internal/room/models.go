package room

import "time"

type createRoomRequest struct {
	RoomID    string   `json:"roomId"`
	Usernames []string `json:"usernames,omitempty"`
	Title     string   `json:"title,omitempty"`
	Date      string   `json:"date,omitempty"`
	Comments  string   `json:"comments,omitempty"`
	ToDoLists string   `json:"toDoLists,omitempty"`
	ToDoCheck []bool   `json:"toDoListsCheckbox,omitempty"`
}

// patchRoomRequest mirrors Patch: absent fields are left untouched, present
// fields replace the stored value wholesale.
type patchRoomRequest struct {
	Usernames *[]string `json:"usernames,omitempty"`
	Title     *string   `json:"title,omitempty"`
	Date      *string   `json:"date,omitempty"`
	Comments  *string   `json:"comments,omitempty"`
	ToDoLists *string   `json:"toDoLists,omitempty"`
	ToDoCheck *[]bool   `json:"toDoListsCheckbox,omitempty"`
}

func (r patchRoomRequest) toPatch() Patch {
	return Patch{
		Usernames: r.Usernames,
		Title:     r.Title,
		Date:      r.Date,
		Comments:  r.Comments,
		ToDoLists: r.ToDoLists,
		ToDoCheck: r.ToDoCheck,
	}
}

type roomResponse struct {
	RoomID    string    `json:"roomId"`
	Usernames []string  `json:"usernames"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Comments  string    `json:"comments"`
	ToDoLists string    `json:"toDoLists"`
	ToDoCheck []bool    `json:"toDoListsCheckbox"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type roomEnvelope struct {
	Room roomResponse `json:"room"`
}

type findUsersResponse struct {
	Usernames []string `json:"usernames"`
}

func toRoomResponse(r Room) roomResponse {
	usernames := r.Usernames
	if usernames == nil {
		usernames = []string{}
	}
	checks := r.ToDoCheck
	if checks == nil {
		checks = []bool{}
	}
	return roomResponse{
		RoomID:    r.ID,
		Usernames: usernames,
		Title:     r.Title,
		Date:      r.Date,
		Comments:  r.Comments,
		ToDoLists: r.ToDoLists,
		ToDoCheck: checks,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
