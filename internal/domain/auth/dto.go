package auth

type LoginRequest struct {
	Password string `json:"password" form:"password" validate:"required,max=256"`
}

type SessionResponse struct {
	IsAdmin   bool   `json:"is_admin"`
	CSRFToken string `json:"csrf_token"`
}
