package model

type PlayResponse struct {
	Ok bool `json:"ok"`
}

type ErrorResponse struct {
	Error int `json:"error"`
}

type SessionResponse struct {
	UserID  string `json:"userId"`
	Channel string `json:"channel"`
}

type ScalesResponse struct {
	Scales []string `json:"scales"`
}
