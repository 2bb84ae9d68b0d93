package models

// Project represents a portfolio entry rendered as a card on the index page
type Project struct {
	Name           string   `json:"name"`
	Language       []string `json:"language"`
	Description    string   `json:"description"`
	Implementation string   `json:"implementation"`
	Link           string   `json:"link"`
	Image          string   `json:"image"`
	Rank           int      `json:"rank"`
}
