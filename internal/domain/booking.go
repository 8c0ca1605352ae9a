package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending                       BookingStatus = "pending"
	BookingStatusAccepted                      BookingStatus = "accepted"
	BookingStatusRejected                      BookingStatus = "rejected"
	BookingStatusBooked                        BookingStatus = "booked"
	BookingStatusCompleted                     BookingStatus = "completed"
	BookingStatusCancelled                     BookingStatus = "cancelled"
	BookingStatusCancellationRequestedByClient BookingStatus = "cancellation_requested_by_client"
	BookingStatusCancellationRequestedByArtist BookingStatus = "cancellation_requested_by_artist"
)

// IsTerminal reports whether no further transition is allowed.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) IsCancellationRequested() bool {
	return s == BookingStatusCancellationRequestedByClient || s == BookingStatusCancellationRequestedByArtist
}

// BlocksCalendar reports whether a booking in this status reserves the
// artist's time window.
func (s BookingStatus) BlocksCalendar() bool {
	return s == BookingStatusAccepted || s == BookingStatusBooked
}

type ContractStatus string

const (
	ContractStatusNone   ContractStatus = "none"
	ContractStatusDraft  ContractStatus = "draft"
	ContractStatusSigned ContractStatus = "signed"
)

type Booking struct {
	ID       string
	ClientID string
	ArtistID string

	EventDate time.Time
	StartTime time.Time
	EndTime   time.Time

	Location     string
	ContactName  string
	ContactEmail string
	ContactPhone string
	EventType    string
	EventDetails string
	Notes        string

	Status      BookingStatus
	CancelledBy Party

	ContractStatus  ContractStatus
	ClientSignature string
	ArtistSignature string
	ClientSignedAt  *time.Time
	ArtistSignedAt  *time.Time
	ContractURL     string
	WageCents       int64
	AdvanceCents    int64
	Currency        string

	IsPaid      bool
	IsFinalPaid bool
	PaymentIDs  []string

	LastActionTime time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// PartyOf returns the role actorID holds on this booking, if any.
func (b *Booking) PartyOf(actorID string) (Party, bool) {
	switch actorID {
	case b.ClientID:
		return PartyClient, true
	case b.ArtistID:
		return PartyArtist, true
	}
	return "", false
}

// IDOf returns the user id holding party p on this booking.
func (b *Booking) IDOf(p Party) string {
	if p == PartyClient {
		return b.ClientID
	}
	return b.ArtistID
}

// Clone returns a deep copy so that staged changes never alias stored state.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.PaymentIDs = append([]string(nil), b.PaymentIDs...)
	if b.ClientSignedAt != nil {
		t := *b.ClientSignedAt
		c.ClientSignedAt = &t
	}
	if b.ArtistSignedAt != nil {
		t := *b.ArtistSignedAt
		c.ArtistSignedAt = &t
	}
	return &c
}
