package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Point is a GeoJSON point with a human readable address.
type Point struct {
	Type        string     `json:"type"        bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"` // [lng, lat]
	Address     string     `json:"address"     bson:"address"`
}

// NewPoint builds a GeoJSON point from longitude and latitude.
func NewPoint(lng, lat float64, address string) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lng, lat}, Address: address}
}

// Store is a business listed in the directory.
type Store struct {
	ID          primitive.ObjectID `json:"_id"                   bson:"_id,omitempty"`
	Name        string             `json:"name"                  bson:"name"`
	Slug        string             `json:"slug"                  bson:"slug"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`
	Tags        []string           `json:"tags,omitempty"        bson:"tags,omitempty"`
	Location    Point              `json:"location"              bson:"location"`
	Photo       string             `json:"photo,omitempty"       bson:"photo,omitempty"`
	Author      primitive.ObjectID `json:"author,omitempty"      bson:"author,omitempty"`
	Created     time.Time          `json:"created,omitempty"     bson:"created,omitempty"`
	Score       float64            `json:"score,omitempty"       bson:"score,omitempty"`

	// Populated on the detail page, not persisted on the document.
	AuthorUser *User    `json:"-" bson:"-"`
	Reviews    []Review `json:"-" bson:"-"`
}

// OwnedBy reports whether the user is the store's author.
func (s *Store) OwnedBy(u *User) bool {
	if s == nil || u == nil {
		return false
	}
	return !s.Author.IsZero() && s.Author == u.ID
}

// StoreForm is the POST /add and POST /add/{id} body.
type StoreForm struct {
	Name        string   `form:"name"        validate:"required"`
	Description string   `form:"description"`
	Tags        []string `form:"tags"`
	Address     string   `form:"address"     validate:"required"`
	Lng         *float64 `form:"lng"         validate:"lng"`
	Lat         *float64 `form:"lat"         validate:"lat"`
}

// Point returns the submitted location. Call it only after validation.
func (f *StoreForm) Point() Point {
	return NewPoint(*f.Lng, *f.Lat, f.Address)
}

// TagCount is one row of the tag list.
type TagCount struct {
	Tag   string `json:"tag"   bson:"_id"`
	Count int    `json:"count" bson:"count"`
}

// TopStore is a store ranked by its average review rating.
type TopStore struct {
	Store
	AverageRating float64 `json:"averageRating"`
	ReviewCount   int     `json:"reviewCount"`
}
