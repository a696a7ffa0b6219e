package models

// Envelope is the backend response wrapper { data: { response: ... } }.
type Envelope[T any] struct {
	Data struct {
		Response T `json:"response"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}
