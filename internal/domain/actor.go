package domain

// Party is a role an actor can hold relative to a booking.
type Party string

const (
	PartyClient Party = "client"
	PartyArtist Party = "artist"
	PartyAdmin  Party = "admin"
)

func (p Party) Valid() bool {
	return p == PartyClient || p == PartyArtist || p == PartyAdmin
}

// Actor is the identity supplied by the auth layer for every request.
type Actor struct {
	ID   string
	Role Party
}
