package authapi

import (
	"time"

	"loft/cmd/identity"
)

type createUserRequest struct {
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	Password string  `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	Email     *string          `json:"email,omitempty"`
	Profile   identity.Profile `json:"profile"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type authResponse struct {
	User            userResponse `json:"user"`
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessExpiresAt"`
}

type refreshResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

// profilePatchRequest mirrors identity.ProfilePatch: absent fields are left
// untouched, present fields replace the stored value wholesale. Username is
// handled separately from the profile bag because it is a unique key.
type profilePatchRequest struct {
	Username          *string              `json:"username,omitempty"`
	Goals             *[]identity.Goal     `json:"goals,omitempty"`
	RemainingDaysPrev *[]string            `json:"remainingDaysPrev,omitempty"`
	RemainingDaysNow  *[]string            `json:"remainingDaysNow,omitempty"`
	ClickCounts       *[]int64             `json:"clickCounts,omitempty"`
	Rooms             *[]identity.RoomCard `json:"rooms,omitempty"`
}

func (r profilePatchRequest) toPatch() identity.ProfilePatch {
	return identity.ProfilePatch{
		Goals:             r.Goals,
		RemainingDaysPrev: r.RemainingDaysPrev,
		RemainingDaysNow:  r.RemainingDaysNow,
		ClickCounts:       r.ClickCounts,
		Rooms:             r.Rooms,
	}
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deleteUserRequest struct {
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Profile:   u.Profile,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
