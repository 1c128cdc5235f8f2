package db

import (
	"github.com/google/uuid"
)

type User struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Refer struct {
	ID         uuid.UUID `json:"id"`
	IDReferrer uuid.UUID `json:"id_referrer"`
	IDReferred uuid.UUID `json:"id_referred"`
}
