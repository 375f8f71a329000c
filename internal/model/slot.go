package model

// Slot is a candidate start time on a given date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
