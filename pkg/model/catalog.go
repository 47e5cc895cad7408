package model

// Court is a bookable playing surface.
type Court struct {
	ID   string `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// Sport carries the hourly price charged for a booking of that sport.
// Amounts are whole currency units.
type Sport struct {
	ID           string `json:"id" bson:"_id"`
	Name         string `json:"name" bson:"name"`
	PricePerHour int64  `json:"price_per_hour" bson:"price_per_hour"`
}
