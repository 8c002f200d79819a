package api

import "marcel.works/classpoll-go/app/model"

type CreatePollRequest struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Timer    int      `json:"timer"`
}

type SubmitAnswerRequest struct {
	PollID         string `json:"pollId"`
	SelectedOption int    `json:"selectedOption"`
	StudentName    string `json:"studentName"`
}

type SubmitAnswerResponse struct {
	Message string      `json:"message"`
	Poll    *model.Poll `json:"poll"`
}

type KickOutResponse struct {
	Message string      `json:"message"`
	Poll    *model.Poll `json:"poll"`
}

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SignInResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    UserInfo `json:"user"`
}
