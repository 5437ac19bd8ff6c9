package models

import "time"

// Review is a row in the PostgreSQL reviews table.
type Review struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`

	AuthorName string `json:"author_name,omitempty"`
}

// ReviewForm is the POST /reviews/{id} body.
type ReviewForm struct {
	Text   string `form:"text"   validate:"required"`
	Rating int    `form:"rating" validate:"required,min=1,max=5"`
}

// StoreRating is the aggregated rating of a single store.
type StoreRating struct {
	StoreID       string
	AverageRating float64
	ReviewCount   int
}
