package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/repository"
	"go.uber.org/zap"
)

// ContractDocument is what the renderer turns into a stored document.
type ContractDocument struct {
	DocumentID      string
	Booking         domain.Booking
	ClientSignature string
	ArtistSignature string
	SignedAt        time.Time
}

// ContractRenderer returns a durable URL for the rendered contract.
type ContractRenderer interface {
	Render(ctx context.Context, doc ContractDocument) (string, error)
}

type DraftContractInput struct {
	WageCents       int64  `json:"wage_cents"`
	Currency        string `json:"currency"`
	ClientSignature string `json:"client_signature"`
}

type SignContractInput struct {
	ArtistSignature string `json:"artist_signature"`
}

func (s *BookingService) DraftContract(ctx context.Context, actor domain.Actor, bookingID string, input DraftContractInput) (*domain.Booking, error) {
	if input.WageCents <= 0 {
		return nil, domain.NewValidationError("wage_cents", "must be positive")
	}
	if strings.TrimSpace(input.ClientSignature) == "" {
		return nil, domain.NewValidationError("client_signature", "is required")
	}

	updated, err := s.mutate(ctx, "draft contract", bookingID, func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
		if err := authorize(b, actor, domain.PartyClient); err != nil {
			return err
		}
		if b.Status != domain.BookingStatusAccepted {
			return stateError(b, "draft a contract for", "booking must be accepted")
		}
		if b.ContractStatus == domain.ContractStatusSigned {
			return stateError(b, "draft a contract for", "contract is already signed")
		}

		signedAt := s.now().UTC().Truncate(time.Microsecond)
		b.ContractStatus = domain.ContractStatusDraft
		b.WageCents = input.WageCents
		b.AdvanceCents = input.WageCents * int64(s.policy.AdvancePercent) / 100
		if input.Currency != "" {
			b.Currency = strings.ToLower(input.Currency)
		}
		b.ClientSignature = input.ClientSignature
		b.ClientSignedAt = &signedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(updated, s.notification(updated, updated.ArtistID, domain.NotificationContractDrafted,
		fmt.Sprintf("A contract for %s is waiting for your signature.", eventLabel(updated))))
	return updated, nil
}

// SignContract renders the document before taking the artist's lock, so a
// renderer failure leaves the booking untouched. Signing never changes the
// booking status.
func (s *BookingService) SignContract(ctx context.Context, actor domain.Actor, bookingID string, input SignContractInput) (*domain.Booking, error) {
	if strings.TrimSpace(input.ArtistSignature) == "" {
		return nil, domain.NewValidationError("artist_signature", "is required")
	}

	current, err := s.GetBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkSignable(current, actor); err != nil {
		return nil, err
	}

	signedAt := s.now().UTC().Truncate(time.Microsecond)
	var contractURL string
	if s.renderer != nil {
		contractURL, err = s.renderer.Render(ctx, ContractDocument{
			DocumentID:      "contract-" + current.ID,
			Booking:         *current,
			ClientSignature: current.ClientSignature,
			ArtistSignature: input.ArtistSignature,
			SignedAt:        signedAt,
		})
		if err != nil {
			s.logger.Error("contract rendering failed", zap.String("booking_id", bookingID), zap.Error(err))
			return nil, &domain.TransientError{Op: "render contract", Err: err}
		}
	}

	updated, err := s.mutate(ctx, "sign contract", bookingID, func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
		if err := checkSignable(b, actor); err != nil {
			return err
		}
		if !sameDraft(current, b) {
			return stateError(b, "sign the contract of", "the draft changed while it was being rendered")
		}
		b.ContractStatus = domain.ContractStatusSigned
		b.ArtistSignature = input.ArtistSignature
		b.ArtistSignedAt = &signedAt
		b.ContractURL = contractURL
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(updated, s.notification(updated, updated.ClientID, domain.NotificationContractSigned,
		fmt.Sprintf("The artist signed the contract for %s.", eventLabel(updated))))
	return updated, nil
}

func checkSignable(b *domain.Booking, actor domain.Actor) error {
	if err := authorize(b, actor, domain.PartyArtist); err != nil {
		return err
	}
	if b.Status != domain.BookingStatusAccepted {
		return stateError(b, "sign the contract of", "booking must be accepted")
	}
	if b.ContractStatus != domain.ContractStatusDraft {
		return stateError(b, "sign the contract of", fmt.Sprintf("contract is %s, expected draft", b.ContractStatus))
	}
	return nil
}

// sameDraft reports whether the client's draft terms are identical in a and b.
func sameDraft(a, b *domain.Booking) bool {
	if a.WageCents != b.WageCents || a.AdvanceCents != b.AdvanceCents || a.Currency != b.Currency {
		return false
	}
	if a.ClientSignature != b.ClientSignature {
		return false
	}
	switch {
	case a.ClientSignedAt == nil || b.ClientSignedAt == nil:
		return a.ClientSignedAt == b.ClientSignedAt
	default:
		return a.ClientSignedAt.Equal(*b.ClientSignedAt)
	}
}
