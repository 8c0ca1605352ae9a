package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Domenick1991/artbooking/internal/domain"
	"github.com/Domenick1991/artbooking/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error)
	Decide(ctx context.Context, actor domain.Actor, bookingID string, accept bool) (*domain.Booking, error)
	DraftContract(ctx context.Context, actor domain.Actor, bookingID string, input DraftContractInput) (*domain.Booking, error)
	SignContract(ctx context.Context, actor domain.Actor, bookingID string, input SignContractInput) (*domain.Booking, error)
	RequestCancellation(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	ApproveCancellation(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	AdminCancel(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	GetBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error)
	ListBookings(ctx context.Context, actor domain.Actor, sortBy string) ([]domain.Booking, error)
	ListPayments(ctx context.Context, actor domain.Actor, bookingID string) ([]domain.Payment, error)
	PaymentQuote(ctx context.Context, actor domain.Actor, bookingID string, paymentType domain.PaymentType) (*Quote, error)
	Capture(ctx context.Context, confirmation CaptureConfirmation) (*CaptureResult, error)
}

// Cache stores per-party booking lists. Misses return ok=false.
type Cache interface {
	GetBookings(ctx context.Context, key string) ([]domain.Booking, bool, error)
	SetBookings(ctx context.Context, key string, bookings []domain.Booking) error
	Invalidate(ctx context.Context, keys ...string) error
}

type Policy struct {
	CreationBuffer   time.Duration
	AcceptanceBuffer time.Duration
	StoreTimeout     time.Duration
	AdvancePercent   int
	DefaultCurrency  string
}

type BookingService struct {
	bookings   repository.BookingRepository
	dispatcher *Dispatcher
	policy     Policy
	logger     *zap.Logger

	cache     Cache
	reminders ReminderScheduler
	renderer  ContractRenderer
	issuer    ContinuationIssuer
	now       func() time.Time

	// listGen is bumped before every list invalidation.
	listGen atomic.Uint64
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithReminders(reminders ReminderScheduler) BookingServiceOption {
	return func(s *BookingService) {
		s.reminders = reminders
	}
}

func WithContractRenderer(renderer ContractRenderer) BookingServiceOption {
	return func(s *BookingService) {
		s.renderer = renderer
	}
}

func WithContinuationIssuer(issuer ContinuationIssuer) BookingServiceOption {
	return func(s *BookingService) {
		s.issuer = issuer
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	dispatcher *Dispatcher,
	policy Policy,
	logger *zap.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil, logger, 0)
	}
	if policy.DefaultCurrency == "" {
		policy.DefaultCurrency = "usd"
	}
	service := &BookingService{
		bookings:   bookings,
		dispatcher: dispatcher,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

type CreateBookingInput struct {
	ArtistID     string    `json:"artist_id"`
	EventDate    time.Time `json:"event_date"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Location     string    `json:"location"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone"`
	EventType    string    `json:"event_type"`
	EventDetails string    `json:"event_details"`
	Notes        string    `json:"notes"`
}

func (in CreateBookingInput) validate() error {
	if strings.TrimSpace(in.ArtistID) == "" {
		return domain.NewValidationError("artist_id", "is required")
	}
	if in.StartTime.IsZero() {
		return domain.NewValidationError("start_time", "is required")
	}
	if in.EndTime.IsZero() {
		return domain.NewValidationError("end_time", "is required")
	}
	if !in.EndTime.After(in.StartTime) {
		return domain.NewValidationError("end_time", "must be after start_time")
	}
	if strings.TrimSpace(in.ContactEmail) == "" {
		return domain.NewValidationError("contact_email", "is required")
	}
	if _, err := mail.ParseAddress(in.ContactEmail); err != nil {
		return domain.NewValidationError("contact_email", "is not a valid address")
	}
	return nil
}

func (s *BookingService) CreateBooking(ctx context.Context, actor domain.Actor, input CreateBookingInput) (*domain.Booking, error) {
	if actor.Role != domain.PartyClient {
		return nil, &domain.AuthorizationError{ActorID: actor.ID, Reason: "only clients can request bookings"}
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.ArtistID == actor.ID {
		return nil, domain.NewValidationError("artist_id", "cannot book yourself")
	}

	eventDate := input.EventDate
	if eventDate.IsZero() {
		eventDate = input.StartTime.UTC().Truncate(24 * time.Hour)
	}
	now := s.now().UTC().Truncate(time.Microsecond)
	booking := &domain.Booking{
		ID:             uuid.NewString(),
		ClientID:       actor.ID,
		ArtistID:       input.ArtistID,
		EventDate:      eventDate.UTC(),
		StartTime:      input.StartTime.UTC(),
		EndTime:        input.EndTime.UTC(),
		Location:       input.Location,
		ContactName:    input.ContactName,
		ContactEmail:   input.ContactEmail,
		ContactPhone:   input.ContactPhone,
		EventType:      input.EventType,
		EventDetails:   input.EventDetails,
		Notes:          input.Notes,
		Status:         domain.BookingStatusPending,
		ContractStatus: domain.ContractStatusNone,
		Currency:       s.policy.DefaultCurrency,
		PaymentIDs:     []string{},
		LastActionTime: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	err := s.bookings.WithinArtistTx(ctx, booking.ArtistID, func(ctx context.Context, tx repository.Tx) error {
		active, err := tx.ActiveForArtist(ctx, booking.ArtistID, "")
		if err != nil {
			return err
		}
		if hit := domain.FirstConflict(booking.Interval(), booking.ArtistID, active, s.policy.CreationBuffer, ""); hit != nil {
			return &domain.ConflictError{ArtistID: booking.ArtistID, ConflictingID: hit.ID, Buffer: s.policy.CreationBuffer}
		}
		return tx.InsertBooking(ctx, booking)
	})
	if err != nil {
		return nil, s.storeError("create booking", booking.ID, err)
	}

	s.committed(booking, s.notification(booking, booking.ArtistID, domain.NotificationBookingRequested,
		fmt.Sprintf("New booking request for %s.", eventLabel(booking))))
	return booking, nil
}

func (s *BookingService) Decide(ctx context.Context, actor domain.Actor, bookingID string, accept bool) (*domain.Booking, error) {
	action := "reject"
	if accept {
		action = "accept"
	}

	updated, err := s.mutate(ctx, action+" booking", bookingID, func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
		if err := authorize(b, actor, domain.PartyArtist); err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending {
			return stateError(b, action, "only pending bookings can be decided")
		}
		if !accept {
			b.Status = domain.BookingStatusRejected
			return nil
		}

		active, err := tx.ActiveForArtist(ctx, b.ArtistID, b.ID)
		if err != nil {
			return err
		}
		if hit := domain.FirstConflict(b.Interval(), b.ArtistID, active, s.policy.AcceptanceBuffer, b.ID); hit != nil {
			return &domain.ConflictError{ArtistID: b.ArtistID, ConflictingID: hit.ID, Buffer: s.policy.AcceptanceBuffer}
		}
		b.Status = domain.BookingStatusAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if accept {
		s.committed(updated, s.notification(updated, updated.ClientID, domain.NotificationBookingAccepted,
			fmt.Sprintf("Your booking for %s was accepted.", eventLabel(updated))))
	} else {
		s.committed(updated, s.notification(updated, updated.ClientID, domain.NotificationBookingRejected,
			fmt.Sprintf("Your booking for %s was declined.", eventLabel(updated))))
	}
	return updated, nil
}

func (s *BookingService) RequestCancellation(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var requester domain.Party
	updated, err := s.mutate(ctx, "request cancellation", bookingID, func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
		if err := authorize(b, actor, domain.PartyClient, domain.PartyArtist); err != nil {
			return err
		}
		switch {
		case b.Status.IsTerminal():
			return stateError(b, "request cancellation of", "booking is closed")
		case b.Status.IsCancellationRequested():
			return stateError(b, "request cancellation of", "cancellation already requested")
		}

		requester = actor.Role
		if requester == domain.PartyClient {
			b.Status = domain.BookingStatusCancellationRequestedByClient
		} else {
			b.Status = domain.BookingStatusCancellationRequestedByArtist
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recipient := updated.ArtistID
	if requester == domain.PartyArtist {
		recipient = updated.ClientID
	}
	s.committed(updated, s.notification(updated, recipient, domain.NotificationCancellationRequested,
		fmt.Sprintf("The %s asked to cancel the booking for %s.", requester, eventLabel(updated))))
	return updated, nil
}

func (s *BookingService) ApproveCancellation(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var requester domain.Party
	updated, err := s.mutate(ctx, "approve cancellation", bookingID, func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
		switch b.Status {
		case domain.BookingStatusCancellationRequestedByClient:
			requester = domain.PartyClient
		case domain.BookingStatusCancellationRequestedByArtist:
			requester = domain.PartyArtist
		default:
			if err := authorize(b, actor, domain.PartyClient, domain.PartyArtist); err != nil {
				return err
			}
			return stateError(b, "approve cancellation of", "no cancellation was requested")
		}

		approver := domain.PartyArtist
		if requester == domain.PartyArtist {
			approver = domain.PartyClient
		}
		if err := authorize(b, actor, approver); err != nil {
			return err
		}
		return s.cancel(ctx, tx, b, requester)
	})
	if err != nil {
		return nil, err
	}

	s.committed(updated, s.notification(updated, updated.IDOf(requester), domain.NotificationCancellationApproved,
		fmt.Sprintf("Your cancellation of the booking for %s was approved.", eventLabel(updated))))
	return updated, nil
}

func (s *BookingService) AdminCancel(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	updated, err := s.mutate(ctx, "admin cancel", bookingID, func(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
		if err := authorize(b, actor, domain.PartyAdmin); err != nil {
			return err
		}
		if b.Status.IsTerminal() {
			return stateError(b, "cancel", "booking is closed")
		}
		return s.cancel(ctx, tx, b, domain.PartyAdmin)
	})
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("The booking for %s was cancelled by an administrator.", eventLabel(updated))
	s.committed(updated,
		s.notification(updated, updated.ClientID, domain.NotificationBookingCancelled, message),
		s.notification(updated, updated.ArtistID, domain.NotificationBookingCancelled, message),
	)
	return updated, nil
}

// cancel closes the booking and refunds its paid payments in the same tx.
func (s *BookingService) cancel(ctx context.Context, tx repository.Tx, b *domain.Booking, by domain.Party) error {
	refunded, err := tx.RefundPaid(ctx, b.ID, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return err
	}
	if len(refunded) > 0 {
		s.logger.Info("refunded payments", zap.String("booking_id", b.ID), zap.Int("count", len(refunded)))
	}
	b.Status = domain.BookingStatusCancelled
	b.CancelledBy = by
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, actor domain.Actor, bookingID string) (*domain.Booking, error) {
	var booking *domain.Booking
	err := s.read(ctx, "get booking", func(ctx context.Context) error {
		b, err := s.bookings.GetByID(ctx, bookingID)
		booking = b
		return err
	})
	if err != nil {
		return nil, s.storeError("get booking", bookingID, err)
	}
	if err := authorize(booking, actor, domain.PartyClient, domain.PartyArtist, domain.PartyAdmin); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, actor domain.Actor, sortBy string) ([]domain.Booking, error) {
	key, err := ParseSortKey(sortBy)
	if err != nil {
		return nil, err
	}
	if !actor.Role.Valid() || actor.ID == "" {
		return nil, &domain.AuthorizationError{ActorID: actor.ID, Reason: "unknown role"}
	}

	cacheKey := listCacheKey(actor.Role, actor.ID)
	bookings, hit := s.cachedList(ctx, actor.Role, cacheKey)
	if !hit {
		gen := s.listGen.Load()
		err = s.read(ctx, "list bookings", func(ctx context.Context) error {
			list, err := s.bookings.ListForParty(ctx, actor.ID, actor.Role)
			bookings = list
			return err
		})
		if err != nil {
			return nil, s.storeError("list bookings", "", err)
		}
		s.storeList(ctx, actor.Role, cacheKey, bookings, gen)
	}

	SortBookings(bookings, key, s.now())
	return bookings, nil
}

func (s *BookingService) ListPayments(ctx context.Context, actor domain.Actor, bookingID string) ([]domain.Payment, error) {
	if _, err := s.GetBooking(ctx, actor, bookingID); err != nil {
		return nil, err
	}

	var payments []domain.Payment
	err := s.read(ctx, "list payments", func(ctx context.Context) error {
		list, err := s.bookings.ListPayments(ctx, bookingID)
		payments = list
		return err
	})
	if err != nil {
		return nil, s.storeError("list payments", bookingID, err)
	}
	return payments, nil
}

// Close drains side effects that are still running.
func (s *BookingService) Close() {
	s.dispatcher.Close()
}

// mutate runs change against the locked booking and persists it with a
// fresh lastActionTime when change returns nil.
func (s *BookingService) mutate(
	ctx context.Context,
	op, bookingID string,
	change func(ctx context.Context, tx repository.Tx, b *domain.Booking) error,
) (*domain.Booking, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, s.storeError(op, bookingID, err)
	}

	var updated *domain.Booking
	err = s.bookings.WithinArtistTx(ctx, current.ArtistID, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := change(ctx, tx, b); err != nil {
			return err
		}
		s.touch(b)
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.storeError(op, bookingID, err)
	}
	return updated, nil
}

// read runs fn once more when it fails for a reason other than a domain
// error. Only idempotent reads go through here.
func (s *BookingService) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = func() error {
			ctx, cancel := s.storeContext(ctx)
			defer cancel()
			return fn(ctx)
		}()
		if err == nil || errors.Is(err, domain.ErrNotFound) || isDomainError(err) || ctx.Err() != nil {
			return err
		}
		if attempt == 1 {
			s.logger.Warn("store read failed, retrying", zap.String("op", op), zap.Error(err))
		}
	}
	return err
}

func (s *BookingService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.policy.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.policy.StoreTimeout)
}

func (s *BookingService) storeError(op, bookingID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.NotFoundError{Entity: "booking", ID: bookingID}
	case isDomainError(err):
		return err
	}
	s.logger.Error("store operation failed", zap.String("op", op), zap.String("booking_id", bookingID), zap.Error(err))
	return &domain.TransientError{Op: op, Err: err}
}

// touch advances lastActionTime strictly past its previous value.
func (s *BookingService) touch(b *domain.Booking) {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(b.LastActionTime) {
		now = b.LastActionTime.Add(time.Microsecond)
	}
	b.LastActionTime = now
	b.UpdatedAt = now
}

func (s *BookingService) notification(b *domain.Booking, userID string, kind domain.NotificationType, message string) domain.Notification {
	return domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Message:   message,
		BookingID: b.ID,
		CreatedAt: s.now().UTC(),
	}
}

// committed runs the side effects of a transition that is already durable.
func (s *BookingService) committed(b *domain.Booking, notifications ...domain.Notification) {
	if s.cache != nil {
		keys := []string{
			listCacheKey(domain.PartyClient, b.ClientID),
			listCacheKey(domain.PartyArtist, b.ArtistID),
		}
		s.listGen.Add(1)
		if err := s.cache.Invalidate(context.Background(), keys...); err != nil {
			s.logger.Warn("failed to invalidate booking lists", zap.String("booking_id", b.ID), zap.Error(err))
		}
	}
	s.dispatcher.Notify(notifications...)
}

func (s *BookingService) cachedList(ctx context.Context, role domain.Party, key string) ([]domain.Booking, bool) {
	if s.cache == nil || role == domain.PartyAdmin {
		return nil, false
	}
	bookings, ok, err := s.cache.GetBookings(ctx, key)
	if err != nil {
		s.logger.Warn("booking list cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return bookings, ok
}

// storeList caches a list read at generation gen. A commit that lands while
// the list is being read or written bumps the generation, and the entry is
// then skipped or dropped again so a stale list never outlives that commit.
func (s *BookingService) storeList(ctx context.Context, role domain.Party, key string, bookings []domain.Booking, gen uint64) {
	if s.cache == nil || role == domain.PartyAdmin {
		return
	}
	if s.listGen.Load() != gen {
		return
	}
	if err := s.cache.SetBookings(ctx, key, bookings); err != nil {
		s.logger.Warn("booking list cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if s.listGen.Load() != gen {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("failed to drop stale booking list", zap.String("key", key), zap.Error(err))
		}
	}
}

func listCacheKey(role domain.Party, actorID string) string {
	return fmt.Sprintf("bookings:%s:%s", role, actorID)
}

// authorize passes when the actor holds one of roles and, for client and
// artist, is that party of b.
func authorize(b *domain.Booking, actor domain.Actor, roles ...domain.Party) error {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
		if actor.Role != role {
			continue
		}
		switch role {
		case domain.PartyAdmin:
			return nil
		case domain.PartyClient:
			if actor.ID == b.ClientID {
				return nil
			}
		case domain.PartyArtist:
			if actor.ID == b.ArtistID {
				return nil
			}
		}
	}
	return &domain.AuthorizationError{
		ActorID: actor.ID,
		Reason:  fmt.Sprintf("must be the %s of booking %s", strings.Join(names, " or "), b.ID),
	}
}

func stateError(b *domain.Booking, action, reason string) error {
	return &domain.StateError{BookingID: b.ID, Current: b.Status, Action: action, Reason: reason}
}

func isDomainError(err error) bool {
	var (
		validation    *domain.ValidationError
		conflict      *domain.ConflictError
		authorization *domain.AuthorizationError
		notFound      *domain.NotFoundError
		state         *domain.StateError
		transient     *domain.TransientError
	)
	return errors.As(err, &validation) ||
		errors.As(err, &conflict) ||
		errors.As(err, &authorization) ||
		errors.As(err, &notFound) ||
		errors.As(err, &state) ||
		errors.As(err, &transient)
}

func eventLabel(b *domain.Booking) string {
	label := b.StartTime.Format("Jan 2, 2006 15:04 MST")
	if b.EventType != "" {
		label = b.EventType + " on " + label
	}
	return label
}

var _ BookingUseCase = (*BookingService)(nil)
