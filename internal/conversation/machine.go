package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okhlopkov/salon-assistant/internal/booking"
	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
	"github.com/okhlopkov/salon-assistant/internal/parser"
	"github.com/okhlopkov/salon-assistant/internal/schedule"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

var machineTracer = otel.Tracer("salon.internal.conversation")

// SlotSource answers availability questions for a date.
type SlotSource interface {
	FreeSlotsFor(ctx context.Context, date string) []schedule.Slot
}

// BookingConfirmer finalizes and cancels bookings.
type BookingConfirmer interface {
	Confirm(ctx context.Context, req booking.ConfirmRequest) (booking.Booking, error)
	CancelByClient(ctx context.Context, clientID string) (bool, error)
}

// ReminderScheduler arms and cancels reminder jobs for bookings.
type ReminderScheduler interface {
	ScheduleBooking(ctx context.Context, b booking.Booking)
	CancelClient(ctx context.Context, clientID string)
}

// HistoryRecorder appends dialogue milestones to the audit log.
type HistoryRecorder interface {
	Record(ctx context.Context, clientID, kind, detail string) error
}

// OperatorNotifier tells salon staff about a fresh booking.
type OperatorNotifier interface {
	BookingConfirmed(ctx context.Context, b booking.Booking) error
}

// Machine drives the booking dialogue. Each inbound event is interpreted
// against the client's stored step; every transition persists the new
// state before it takes effect, and a failed persist leaves the client
// exactly where they were.
type Machine struct {
	states     StateStore
	slots      SlotSource
	bookings   BookingConfirmer
	reminders  ReminderScheduler
	history    HistoryRecorder
	operator   OperatorNotifier
	nlParser   parser.Parser
	procedures []string
	salonName  string
	loc        *time.Location
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
	now        func() time.Time
}

// MachineOption customizes optional machine collaborators.
type MachineOption func(*Machine)

func WithParser(p parser.Parser) MachineOption {
	return func(m *Machine) {
		if p != nil {
			m.nlParser = p
		}
	}
}

func WithReminderScheduler(s ReminderScheduler) MachineOption {
	return func(m *Machine) { m.reminders = s }
}

func WithHistoryRecorder(h HistoryRecorder) MachineOption {
	return func(m *Machine) { m.history = h }
}

func WithOperatorNotifier(n OperatorNotifier) MachineOption {
	return func(m *Machine) { m.operator = n }
}

func WithProcedures(procedures []string) MachineOption {
	return func(m *Machine) {
		if len(procedures) > 0 {
			m.procedures = append([]string(nil), procedures...)
		}
	}
}

func WithSalonName(name string) MachineOption {
	return func(m *Machine) {
		if name != "" {
			m.salonName = name
		}
	}
}

func WithLocation(loc *time.Location) MachineOption {
	return func(m *Machine) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithMachineClock overrides the clock, for tests.
func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// NewMachine builds the dialogue state machine.
func NewMachine(states StateStore, slots SlotSource, bookings BookingConfirmer, m *metrics.BookingMetrics, logger *logging.Logger, opts ...MachineOption) *Machine {
	if states == nil {
		panic("conversation: state store cannot be nil")
	}
	if slots == nil {
		panic("conversation: slot source cannot be nil")
	}
	if bookings == nil {
		panic("conversation: booking confirmer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	machine := &Machine{
		states:     states,
		slots:      slots,
		bookings:   bookings,
		nlParser:   parser.StubParser{},
		procedures: []string{"Стрижка", "Манікюр", "Педикюр", "Брови"},
		salonName:  "Салон краси",
		loc:        time.UTC,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(machine)
	}
	return machine
}

// Handle interprets one inbound event and returns the assistant's reply.
func (m *Machine) Handle(ctx context.Context, event Event) (Reply, error) {
	ctx, span := machineTracer.Start(ctx, "Machine.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("event.kind", string(event.Kind)))

	started := m.now()
	clientID := strings.TrimSpace(event.ClientID)
	if clientID == "" {
		m.metrics.ObserveInbound(string(event.Kind), "rejected")
		return Reply{}, fmt.Errorf("conversation: event without client id")
	}
	input := event.Input()

	state, active, err := m.states.Get(ctx, clientID)
	if err != nil {
		m.logger.Error("state load failed", "client_id", clientID, "error", err)
		m.metrics.ObserveInbound(string(event.Kind), "error")
		return transientErrorReply(), nil
	}

	step := "none"
	if active {
		step = string(state.Step)
	}
	defer func() {
		m.metrics.ObserveHandleLatency(step, m.now().Sub(started).Seconds())
	}()

	reply := m.route(ctx, clientID, input, state, active)
	m.metrics.ObserveInbound(string(event.Kind), "handled")
	return reply, nil
}

func (m *Machine) route(ctx context.Context, clientID, input string, state State, active bool) Reply {
	switch {
	case matchesCommand(input, cancelCommands):
		return m.handleCancel(ctx, clientID)
	case matchesCommand(input, startCommands):
		return m.handleStart(ctx, clientID)
	case matchesCommand(input, backCommands):
		return m.handleBack(ctx, state, active)
	}

	if !active {
		// First contact starts a fresh flow: non-empty text doubles as
		// the client's name, one step past the explicit "start" path.
		if input == "" {
			return greetingReply(m.salonName)
		}
		return m.handleName(ctx, State{ClientID: clientID, Step: StepAwaitingName, UpdatedAt: m.now().UTC()}, input)
	}

	switch state.Step {
	case StepAwaitingName:
		return m.handleName(ctx, state, input)
	case StepAwaitingProcedure:
		return m.handleProcedure(ctx, state, input)
	case StepAwaitingDate:
		return m.handleDate(ctx, state, input)
	case StepAwaitingSlot:
		return m.handleSlot(ctx, state, input)
	default:
		// Unknown persisted step: drop the stale state and start over.
		m.logger.Warn("unknown dialogue step, resetting", "client_id", clientID, "step", state.Step)
		if err := m.states.Delete(ctx, clientID); err != nil {
			m.logger.Error("state reset failed", "client_id", clientID, "error", err)
		}
		return greetingReply(m.salonName)
	}
}

func (m *Machine) handleStart(ctx context.Context, clientID string) Reply {
	state := State{ClientID: clientID, Step: StepAwaitingName, UpdatedAt: m.now().UTC()}
	if err := m.states.Put(ctx, state); err != nil {
		m.logger.Error("state save failed", "client_id", clientID, "error", err)
		return transientErrorReply()
	}
	m.record(ctx, clientID, "dialogue_started", "")
	return askNameReply()
}

func (m *Machine) handleCancel(ctx context.Context, clientID string) Reply {
	removed, err := m.bookings.CancelByClient(ctx, clientID)
	if err != nil {
		m.logger.Error("cancellation failed", "client_id", clientID, "error", err)
		return transientErrorReply()
	}

	if m.reminders != nil {
		m.reminders.CancelClient(ctx, clientID)
	}
	if err := m.states.Delete(ctx, clientID); err != nil {
		m.logger.Error("state delete failed", "client_id", clientID, "error", err)
	}

	if !removed {
		return nothingToCancelReply()
	}
	m.record(ctx, clientID, "booking_cancelled", "")
	return cancelledReply()
}

func (m *Machine) handleBack(ctx context.Context, state State, active bool) Reply {
	if !active {
		return greetingReply(m.salonName)
	}

	switch state.Step {
	case StepAwaitingProcedure:
		state.Step = StepAwaitingName
		state.Name = ""
	case StepAwaitingDate:
		state.Step = StepAwaitingProcedure
		state.Procedure = ""
	case StepAwaitingSlot:
		state.Step = StepAwaitingDate
		state.Date = ""
	default:
		return askNameReply()
	}

	state.UpdatedAt = m.now().UTC()
	if err := m.states.Put(ctx, state); err != nil {
		m.logger.Error("state save failed", "client_id", state.ClientID, "error", err)
		return transientErrorReply()
	}

	switch state.Step {
	case StepAwaitingName:
		return askNameReply()
	case StepAwaitingProcedure:
		return askProcedureReply(state.Name, m.procedures)
	default:
		return askDateReply()
	}
}

func (m *Machine) handleName(ctx context.Context, state State, input string) Reply {
	name := strings.TrimSpace(input)
	if name == "" {
		return askNameAgainReply()
	}

	state.Name = name
	state.Step = StepAwaitingProcedure
	state.UpdatedAt = m.now().UTC()
	if err := m.states.Put(ctx, state); err != nil {
		m.logger.Error("state save failed", "client_id", state.ClientID, "error", err)
		return transientErrorReply()
	}
	return askProcedureReply(name, m.procedures)
}

func (m *Machine) handleProcedure(ctx context.Context, state State, input string) Reply {
	procedure, ok := m.matchProcedure(input)
	if !ok {
		// Free-form message: let the language model take a guess, then
		// validate that guess against the real procedure list.
		extraction := m.nlParser.Parse(ctx, input)
		procedure, ok = m.matchProcedure(extraction.Procedure)
	}
	if !ok {
		return unknownProcedureReply(m.procedures)
	}

	state.Procedure = procedure
	state.Step = StepAwaitingDate
	state.UpdatedAt = m.now().UTC()
	if err := m.states.Put(ctx, state); err != nil {
		m.logger.Error("state save failed", "client_id", state.ClientID, "error", err)
		return transientErrorReply()
	}
	return askDateReply()
}

func (m *Machine) handleDate(ctx context.Context, state State, input string) Reply {
	today := m.now().In(m.loc)

	date, err := schedule.Normalize(input, today)
	if err != nil {
		extraction := m.nlParser.Parse(ctx, input)
		if extraction.Date != "" {
			date, err = schedule.Normalize(extraction.Date, today)
		}
	}
	if err != nil {
		return unknownDateReply()
	}

	dateStr := date.Format(schedule.DateLayout)
	free := m.slots.FreeSlotsFor(ctx, dateStr)
	if len(free) == 0 {
		// Fully booked day or unreachable store: either way the client
		// picks another date rather than racing for a phantom slot.
		return noSlotsReply(dateStr)
	}

	state.Date = dateStr
	state.Step = StepAwaitingSlot
	state.UpdatedAt = m.now().UTC()
	if err := m.states.Put(ctx, state); err != nil {
		m.logger.Error("state save failed", "client_id", state.ClientID, "error", err)
		return transientErrorReply()
	}
	return askSlotReply(dateStr, free)
}

func (m *Machine) handleSlot(ctx context.Context, state State, input string) Reply {
	free := m.slots.FreeSlotsFor(ctx, state.Date)

	// "після обіду" and friends narrow the list instead of picking a slot.
	if from, to, ok := schedule.ResolveInterval(input); ok {
		return intervalSlotsReply(schedule.FilterByInterval(free, from, to))
	}

	slot, ok := m.matchSlot(input, free)
	if !ok {
		extraction := m.nlParser.Parse(ctx, input)
		if extraction.TimeOrRange != "" {
			if from, to, intervalOK := schedule.ResolveInterval(extraction.TimeOrRange); intervalOK {
				return intervalSlotsReply(schedule.FilterByInterval(free, from, to))
			}
			slot, ok = m.matchSlot(extraction.TimeOrRange, free)
		}
	}
	if !ok {
		return slotUnavailableReply(free)
	}

	confirmed, err := m.bookings.Confirm(ctx, booking.ConfirmRequest{
		ClientID:   state.ClientID,
		ClientName: state.Name,
		Procedure:  state.Procedure,
		Date:       state.Date,
		Slot:       string(slot),
	})
	if errors.Is(err, booking.ErrSlotTaken) {
		// Lost the race: stay on this step with a fresh list.
		return slotTakenReply(m.slots.FreeSlotsFor(ctx, state.Date))
	}
	if err != nil {
		// The booking did not persist, so the dialogue must not finish.
		m.logger.Error("confirmation failed", "client_id", state.ClientID, "error", err)
		return transientErrorReply()
	}

	if m.reminders != nil {
		m.reminders.ScheduleBooking(ctx, confirmed)
	}
	if m.operator != nil {
		if err := m.operator.BookingConfirmed(ctx, confirmed); err != nil {
			m.logger.Warn("operator notification failed", "booking_id", confirmed.ID, "error", err)
		}
	}
	m.record(ctx, state.ClientID, "booking_confirmed", fmt.Sprintf("%s %s %s", confirmed.Procedure, confirmed.Date, confirmed.Slot))

	if err := m.states.Delete(ctx, state.ClientID); err != nil {
		m.logger.Error("state delete failed", "client_id", state.ClientID, "error", err)
	}
	return confirmedReply(state.Name, confirmed.Procedure, confirmed.Date, confirmed.Slot)
}

func (m *Machine) matchProcedure(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	for _, procedure := range m.procedures {
		if strings.ToLower(procedure) == normalized {
			return procedure, true
		}
	}
	return "", false
}

func (m *Machine) matchSlot(input string, free []schedule.Slot) (schedule.Slot, bool) {
	candidate := schedule.Slot(strings.TrimSpace(input))
	for _, s := range free {
		if s == candidate {
			return candidate, true
		}
	}
	return "", false
}

func (m *Machine) record(ctx context.Context, clientID, kind, detail string) {
	if m.history == nil {
		return
	}
	if err := m.history.Record(ctx, clientID, kind, detail); err != nil {
		m.logger.Warn("history append failed", "client_id", clientID, "kind", kind, "error", err)
	}
}
