package booking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
)

type SortKey string

const (
	SortByPriority  SortKey = "priority"
	SortByCreatedAt SortKey = "createdAt"
	SortByUpdatedAt SortKey = "updatedAt"
)

var statusWeights = map[domain.BookingStatus]float64{
	domain.BookingStatusCompleted: 100,
	domain.BookingStatusBooked:    80,
	domain.BookingStatusAccepted:  60,
	domain.BookingStatusPending:   30,
	domain.BookingStatusRejected:  10,
	domain.BookingStatusCancelled: 5,
}

var contractWeights = map[domain.ContractStatus]float64{
	domain.ContractStatusSigned: 50,
	domain.ContractStatusDraft:  30,
	domain.ContractStatusNone:   0,
}

// Score orders bookings for display. Statuses missing from the weight table,
// such as pending cancellation requests, weigh zero.
func Score(b domain.Booking, now time.Time) float64 {
	hoursSince := math.Max(0, now.Sub(b.LastActionTime).Hours())
	recency := math.Max(0, 50-hoursSince)
	return 0.5*statusWeights[b.Status] + 0.3*contractWeights[b.ContractStatus] + 0.2*recency
}

func ParseSortKey(raw string) (SortKey, error) {
	switch SortKey(raw) {
	case "", SortByCreatedAt:
		return SortByCreatedAt, nil
	case SortByPriority:
		return SortByPriority, nil
	case SortByUpdatedAt:
		return SortByUpdatedAt, nil
	}
	return "", domain.NewValidationError("sortBy", fmt.Sprintf("must be one of %s, %s, %s", SortByPriority, SortByCreatedAt, SortByUpdatedAt))
}

// SortBookings sorts newest or highest first. Ties fall back to id.
func SortBookings(bookings []domain.Booking, key SortKey, now time.Time) {
	less := func(i, j int) bool { return bookings[i].ID < bookings[j].ID }

	switch key {
	case SortByPriority:
		scores := make(map[string]float64, len(bookings))
		for _, b := range bookings {
			scores[b.ID] = Score(b, now)
		}
		sort.SliceStable(bookings, func(i, j int) bool {
			si, sj := scores[bookings[i].ID], scores[bookings[j].ID]
			if si != sj {
				return si > sj
			}
			return less(i, j)
		})
	case SortByUpdatedAt:
		sort.SliceStable(bookings, func(i, j int) bool {
			if !bookings[i].UpdatedAt.Equal(bookings[j].UpdatedAt) {
				return bookings[i].UpdatedAt.After(bookings[j].UpdatedAt)
			}
			return less(i, j)
		})
	default:
		sort.SliceStable(bookings, func(i, j int) bool {
			if !bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
				return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
			}
			return less(i, j)
		})
	}
}
