package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"voicebook/models"
	"voicebook/services/fields"
	"voicebook/utils"

	"go.uber.org/zap"
)

const (
	defaultLockTTL      = 15 * time.Second
	defaultLockWait     = 2 * time.Second
	lockRetryInterval   = 25 * time.Millisecond
	confirmationTimeout = 30 * time.Second
)

// DefaultResolver answers availability questions against the calendar store and
// performs commits. It keeps no calendar state between calls.
type DefaultResolver struct {
	Calendar     models.BusinessCalendarConfig
	Store        CalendarStore
	Parser       fields.Parser
	Lock         CommitLock
	Confirmation ConfirmationSender
	Cancellation CancellationListener
	Logger       *zap.Logger
	LockTTL      time.Duration
	// LockWait bounds how long a commit waits for another caller's lock on
	// the same slot before answering Conflict.
	LockWait time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	pending  sync.WaitGroup
}

func (r *DefaultResolver) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return utils.GetLogger()
}

// CheckAvailability looks up the grid slot starting at hhmm and reports whether
// any commitment overlaps it.
func (r *DefaultResolver) CheckAvailability(ctx context.Context, date, hhmm string) (Availability, error) {
	slot, err := r.slotAt(date, hhmm)
	if err != nil {
		return Availability{}, err
	}

	commitments, err := r.Store.ListCommitments(ctx, date)
	if err != nil {
		metricAvailabilityChecks.WithLabelValues("error").Inc()
		return Availability{}, fmt.Errorf("%w: list commitments for %s: %v", ErrCollaboratorUnavailable, date, err)
	}
	for i := range commitments {
		if slot.Overlaps(commitments[i].Start, commitments[i].End) {
			metricAvailabilityChecks.WithLabelValues("unavailable").Inc()
			return Availability{Available: false, Slot: slot, Conflict: &commitments[i]}, nil
		}
	}
	metricAvailabilityChecks.WithLabelValues("available").Inc()
	return Availability{Available: true, Slot: slot}, nil
}

// ListAvailableSlots returns the grid minus every slot overlapping a commitment,
// in chronological order. A closed or fully booked day gives an empty list.
func (r *DefaultResolver) ListAvailableSlots(ctx context.Context, date string) ([]models.Slot, error) {
	grid, err := Generate(date, r.Calendar)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return grid, nil
	}

	commitments, err := r.Store.ListCommitments(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: list commitments for %s: %v", ErrCollaboratorUnavailable, date, err)
	}

	free := make([]models.Slot, 0, len(grid))
	for _, s := range grid {
		taken := false
		for _, c := range commitments {
			if s.Overlaps(c.Start, c.End) {
				taken = true
				break
			}
		}
		if !taken {
			free = append(free, s)
		}
	}
	return free, nil
}

// Commit validates the request, re-checks availability and only then asks the
// store to create the commitment. Losing a race to another caller is a Conflict.
func (r *DefaultResolver) Commit(ctx context.Context, req models.BookingRequest) models.BookingResult {
	result := r.commit(ctx, req)
	metricCommits.WithLabelValues(string(result.Outcome)).Inc()
	return result
}

func (r *DefaultResolver) commit(ctx context.Context, req models.BookingRequest) models.BookingResult {
	logger := r.logger().With(zap.String("requestID", req.ID))

	booking, err := r.Parser.Validate(req)
	if err != nil {
		var verr *fields.ValidationError
		if errors.As(err, &verr) {
			return models.Invalid(verr.Field, verr.Reason)
		}
		return models.Failed(err)
	}

	done, err := r.begin(req.ID)
	if err != nil {
		return models.Failed(err)
	}
	defer done()

	slot, err := r.slotAt(booking.Date, booking.Time)
	if err != nil {
		return invalidSlot(err)
	}

	if r.Lock != nil {
		release, err := r.acquire(ctx, lockKey(slot))
		switch {
		case errors.Is(err, ErrLockHeld):
			return models.Conflict("slot is being booked by another caller")
		case ctx.Err() != nil:
			return models.Failed(ctx.Err())
		case err != nil:
			// The store still rejects overlaps, so a lock outage only widens contention.
			logger.Warn("commit lock unavailable, relying on store overlap check", zap.Error(err))
		default:
			defer release()
		}
	}

	avail, err := r.CheckAvailability(ctx, booking.Date, booking.Time)
	if err != nil {
		if errors.Is(err, ErrCollaboratorUnavailable) {
			return models.Failed(err)
		}
		return invalidSlot(err)
	}
	if !avail.Available {
		return models.Conflict(fmt.Sprintf("%s at %s is already booked", booking.Date, booking.Time))
	}

	commitment, err := r.Store.CreateCommitment(ctx, models.Interval{
		Date:  slot.Date,
		Start: slot.Start,
		End:   slot.End,
	}, r.metadata(booking))
	if errors.Is(err, models.ErrCommitmentOverlap) {
		logger.Info("lost commit race", zap.String("date", booking.Date), zap.String("time", booking.Time))
		return models.Conflict(fmt.Sprintf("%s at %s was just taken", booking.Date, booking.Time))
	}
	if err != nil {
		return models.Failed(fmt.Errorf("%w: create commitment: %v", ErrCollaboratorUnavailable, err))
	}

	result := models.Confirmed(commitment.ID, slot)
	logger.Info("booking confirmed",
		zap.String("commitmentID", commitment.ID),
		zap.String("date", booking.Date),
		zap.String("time", booking.Time))
	r.confirm(ctx, result, booking)
	return result
}

// Cancel removes a commitment and notifies the cancellation listener. The
// optional reason is passed on to the notice.
func (r *DefaultResolver) Cancel(ctx context.Context, id, reason string) error {
	c, err := r.Store.GetCommitment(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrCommitmentNotFound) {
			return err
		}
		return fmt.Errorf("%w: get commitment %s: %v", ErrCollaboratorUnavailable, id, err)
	}
	if err := r.Store.CancelCommitment(ctx, id); err != nil {
		if errors.Is(err, models.ErrCommitmentNotFound) {
			return err
		}
		return fmt.Errorf("%w: cancel commitment %s: %v", ErrCollaboratorUnavailable, id, err)
	}
	if r.Cancellation != nil {
		if err := r.Cancellation.CommitmentCancelled(ctx, c, reason); err != nil {
			r.logger().Warn("cancellation side effect failed", zap.String("commitmentID", id), zap.Error(err))
		}
	}
	return nil
}

// Wait blocks until every detached confirmation has returned.
func (r *DefaultResolver) Wait() {
	r.pending.Wait()
}

func (r *DefaultResolver) confirm(ctx context.Context, result models.BookingResult, req models.BookingRequest) {
	if r.Confirmation == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmationTimeout)
		defer cancel()
		if err := r.Confirmation.SendConfirmation(cctx, result, req); err != nil {
			metricConfirmationFailures.Inc()
			r.logger().Warn("confirmation not sent",
				zap.String("commitmentID", result.CommitmentID),
				zap.Error(err))
		}
	}()
}

// acquire retries a held lock until LockWait runs out. The holder may still
// fail, in which case the slot is free again and the re-check below sees it.
func (r *DefaultResolver) acquire(ctx context.Context, key string) (func(), error) {
	ttl := r.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	wait := r.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	deadline := time.Now().Add(wait)
	for {
		release, err := r.Lock.Acquire(ctx, key, ttl)
		if !errors.Is(err, ErrLockHeld) || !time.Now().Before(deadline) {
			return release, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (r *DefaultResolver) begin(requestID string) (func(), error) {
	if requestID == "" {
		return func() {}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight == nil {
		r.inflight = make(map[string]struct{})
	}
	if _, busy := r.inflight[requestID]; busy {
		return nil, ErrCommitInFlight
	}
	r.inflight[requestID] = struct{}{}
	return func() {
		r.mu.Lock()
		delete(r.inflight, requestID)
		r.mu.Unlock()
	}, nil
}

func (r *DefaultResolver) slotAt(date, hhmm string) (models.Slot, error) {
	grid, err := Generate(date, r.Calendar)
	if err != nil {
		return models.Slot{}, err
	}
	if len(grid) == 0 {
		return models.Slot{}, fmt.Errorf("%w: %s", ErrDayClosed, date)
	}
	t, err := time.Parse(models.TimeLayout, strings.TrimSpace(hhmm))
	if err != nil {
		return models.Slot{}, fmt.Errorf("%w: %q", ErrSlotNotAligned, hhmm)
	}
	slot, ok := findSlot(grid, t.Format(models.TimeLayout))
	if !ok {
		return models.Slot{}, fmt.Errorf("%w: %s on %s", ErrSlotNotAligned, hhmm, date)
	}
	return slot, nil
}

func (r *DefaultResolver) metadata(req models.BookingRequest) models.CommitmentMetadata {
	var desc strings.Builder
	fmt.Fprintf(&desc, "Service: %s\nClient: %s\nPhone: %s\nEmail: %s\n", req.ServiceType, req.Name, req.Phone, req.Email)
	if req.Notes != "" {
		fmt.Fprintf(&desc, "Notes: %s\n", req.Notes)
	}
	desc.WriteString("Booked by the voice assistant.")

	return models.CommitmentMetadata{
		Summary:      fmt.Sprintf("%s - %s", req.ServiceType, req.Name),
		Description:  desc.String(),
		ServiceType:  req.ServiceType,
		CustomerName: req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Notes:        req.Notes,
		Language:     string(req.Language),
		Timezone:     r.Calendar.Loc().String(),
	}
}

func invalidSlot(err error) models.BookingResult {
	switch {
	case errors.Is(err, ErrSlotNotAligned):
		return models.Invalid(models.FieldTime, err.Error())
	case errors.Is(err, ErrDayClosed), errors.Is(err, ErrInvalidDate):
		return models.Invalid(models.FieldDate, err.Error())
	}
	return models.Failed(err)
}

func lockKey(s models.Slot) string {
	return "commit:" + s.Date + "T" + s.StartLabel()
}
