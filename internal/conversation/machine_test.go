package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhlopkov/salon-assistant/internal/booking"
	"github.com/okhlopkov/salon-assistant/internal/observability/metrics"
	"github.com/okhlopkov/salon-assistant/internal/parser"
	"github.com/okhlopkov/salon-assistant/internal/schedule"
)

// Wednesday noon; "п'ятниця" resolves to 2025-07-18.
var testNow = time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)

type fakeReminders struct {
	scheduled []booking.Booking
	cancelled []string
}

func (f *fakeReminders) ScheduleBooking(_ context.Context, b booking.Booking) {
	f.scheduled = append(f.scheduled, b)
}

func (f *fakeReminders) CancelClient(_ context.Context, clientID string) {
	f.cancelled = append(f.cancelled, clientID)
}

type fakeParser struct {
	extraction parser.Extraction
}

func (f fakeParser) Parse(context.Context, string) parser.Extraction { return f.extraction }

type fakeConfirmer struct {
	err error
}

func (f fakeConfirmer) Confirm(context.Context, booking.ConfirmRequest) (booking.Booking, error) {
	return booking.Booking{}, f.err
}

func (f fakeConfirmer) CancelByClient(context.Context, string) (bool, error) {
	return false, nil
}

type testEnv struct {
	machine   *Machine
	states    *MemoryStateStore
	repo      *booking.MemoryRepository
	reminders *fakeReminders
}

func newTestEnv(t *testing.T, opts ...MachineOption) *testEnv {
	t.Helper()
	states := NewMemoryStateStore()
	repo := booking.NewMemoryRepository()
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	svc := booking.NewService(repo, m, nil).WithClock(func() time.Time { return testNow })
	avail := booking.NewAvailability(repo, schedule.DefaultGrid, nil)
	reminders := &fakeReminders{}

	base := []MachineOption{
		WithReminderScheduler(reminders),
		WithMachineClock(func() time.Time { return testNow }),
	}
	machine := NewMachine(states, avail, svc, m, nil, append(base, opts...)...)
	return &testEnv{machine: machine, states: states, repo: repo, reminders: reminders}
}

func (e *testEnv) send(t *testing.T, clientID, text string) Reply {
	t.Helper()
	reply, err := e.machine.Handle(context.Background(), Event{ClientID: clientID, Kind: KindMessage, Text: text})
	require.NoError(t, err)
	return reply
}

func TestFullBookingFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reply := env.send(t, "tg:100", "Розпочати запис")
	assert.Contains(t, reply.Text, "звертатися")

	reply = env.send(t, "tg:100", "Олена")
	assert.Contains(t, reply.Text, "Олена")
	assert.Contains(t, reply.Buttons, "Стрижка")

	reply = env.send(t, "tg:100", "Стрижка")
	assert.Contains(t, reply.Text, "дату")

	reply = env.send(t, "tg:100", "п'ятниця")
	assert.Contains(t, reply.Text, "2025-07-18")
	assert.Contains(t, reply.Buttons, "10:00")

	reply = env.send(t, "tg:100", "10:00")
	assert.Contains(t, reply.Text, "вас записано")
	assert.Contains(t, reply.Text, "Стрижка")
	assert.Contains(t, reply.Text, "10:00")

	// The booking landed in the store.
	active, err := env.repo.ListActive(ctx, "2025-07-18")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "tg:100", active[0].ClientID)
	assert.Equal(t, "Олена", active[0].ClientName)
	assert.EqualValues(t, "10:00", active[0].Slot)

	// Reminders were armed and the dialogue state is gone.
	assert.Len(t, env.reminders.scheduled, 1)
	_, exists, err := env.states.Get(ctx, "tg:100")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFirstMessageBecomesName(t *testing.T) {
	env := newTestEnv(t)

	// No explicit start: the first message doubles as the name.
	reply := env.send(t, "tg:200", "Ірина")
	assert.Contains(t, reply.Text, "Ірина")
	assert.Contains(t, reply.Buttons, "Манікюр")

	state, exists, err := env.states.Get(context.Background(), "tg:200")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, StepAwaitingProcedure, state.Step)
	assert.Equal(t, "Ірина", state.Name)
}

func TestCancelThenTextStartsFreshFlow(t *testing.T) {
	env := newTestEnv(t)

	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Стрижка")
	env.send(t, "tg:100", "відмінити запис")

	// Post-cancel text is a fresh name, never interpreted as a date.
	reply := env.send(t, "tg:100", "Олена")
	assert.Contains(t, reply.Buttons, "Стрижка")

	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, StepAwaitingProcedure, state.Step)
}

func TestCalendarSelectionFeedsDateStep(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Манікюр")

	reply, err := env.machine.Handle(context.Background(), Event{
		ClientID: "tg:100",
		Kind:     KindSelection,
		Payload:  "2025-07-18",
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "2025-07-18")
	assert.NotEmpty(t, reply.Buttons)
}

func TestEmptyNameReprompts(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")

	reply := env.send(t, "tg:100", "   ")
	assert.Contains(t, reply.Text, "ім'я")

	state, exists, err := env.states.Get(context.Background(), "tg:100")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, StepAwaitingName, state.Step)
}

func TestUnknownProcedureReprompts(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")

	reply := env.send(t, "tg:100", "Масаж")
	assert.Contains(t, reply.Text, "немає")
	assert.Contains(t, reply.Buttons, "Манікюр")

	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, StepAwaitingProcedure, state.Step)
}

func TestParserFallbackForProcedure(t *testing.T) {
	env := newTestEnv(t, WithParser(fakeParser{extraction: parser.Extraction{Procedure: "стрижка"}}))
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")

	// Free-form message the keyword matcher cannot place; the parser
	// guess is still validated against the procedure list.
	reply := env.send(t, "tg:100", "хочу підстригтися")
	assert.Contains(t, reply.Text, "дату")

	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, "Стрижка", state.Procedure)
}

func TestParserGuessOutsideListIsRejected(t *testing.T) {
	env := newTestEnv(t, WithParser(fakeParser{extraction: parser.Extraction{Procedure: "Татуаж"}}))
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")

	reply := env.send(t, "tg:100", "хочу татуаж")
	assert.Contains(t, reply.Text, "немає")
}

func TestUnrecognizedDateReprompts(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Брови")

	reply := env.send(t, "tg:100", "колись потім")
	assert.Contains(t, reply.Text, "Не вдалося розпізнати")

	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, StepAwaitingDate, state.Step)
}

func TestFullyBookedDayStaysOnDateStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Occupy the entire grid for Friday.
	for _, s := range schedule.DefaultGrid.Slots() {
		require.NoError(t, env.repo.Append(ctx, booking.Booking{ClientID: "other", Date: "2025-07-18", Slot: s}))
	}

	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Педикюр")

	reply := env.send(t, "tg:100", "п'ятниця")
	assert.Contains(t, reply.Text, "вільних годин немає")

	state, _, _ := env.states.Get(ctx, "tg:100")
	assert.Equal(t, StepAwaitingDate, state.Step)
	assert.Empty(t, state.Date)
}

func TestOffGridSlotReprompts(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Стрижка")
	env.send(t, "tg:100", "п'ятниця")

	reply := env.send(t, "tg:100", "20:00")
	assert.Contains(t, reply.Text, "недоступна")
	assert.NotEmpty(t, reply.Buttons)

	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, StepAwaitingSlot, state.Step)
}

func TestIntervalExpressionFiltersSlots(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Стрижка")
	env.send(t, "tg:100", "п'ятниця")

	reply := env.send(t, "tg:100", "після обіду")
	assert.Contains(t, reply.Buttons, "13:00")
	assert.NotContains(t, reply.Buttons, "09:00")

	// Narrowing the list is not a pick: the dialogue stays on this step.
	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, StepAwaitingSlot, state.Step)
}

func TestLostSlotRaceStaysOnSlotStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Стрижка")
	env.send(t, "tg:100", "п'ятниця")

	// Another client grabs 10:00 after the list was shown.
	require.NoError(t, env.repo.Append(ctx, booking.Booking{ClientID: "other", Date: "2025-07-18", Slot: "10:00"}))

	reply := env.send(t, "tg:100", "10:00")
	assert.NotContains(t, reply.Text, "вас записано")
	assert.NotContains(t, reply.Buttons, "10:00")
	assert.Contains(t, reply.Buttons, "11:00")

	state, _, _ := env.states.Get(ctx, "tg:100")
	assert.Equal(t, StepAwaitingSlot, state.Step)
}

func TestConfirmFailureDoesNotCompleteDialogue(t *testing.T) {
	states := NewMemoryStateStore()
	repo := booking.NewMemoryRepository()
	avail := booking.NewAvailability(repo, schedule.DefaultGrid, nil)
	machine := NewMachine(states, avail, fakeConfirmer{err: errors.New("store down")}, nil, nil,
		WithMachineClock(func() time.Time { return testNow }))
	ctx := context.Background()

	require.NoError(t, states.Put(ctx, State{
		ClientID: "tg:100", Step: StepAwaitingSlot,
		Name: "Олена", Procedure: "Стрижка", Date: "2025-07-18",
	}))

	reply, err := machine.Handle(ctx, Event{ClientID: "tg:100", Kind: KindMessage, Text: "10:00"})
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "помилка")

	// No transition: the client can simply retry.
	state, exists, err := states.Get(ctx, "tg:100")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, StepAwaitingSlot, state.Step)
}

func TestCancelClearsBookingStateAndReminders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Стрижка")
	env.send(t, "tg:100", "п'ятниця")
	env.send(t, "tg:100", "10:00")

	reply := env.send(t, "tg:100", "Відмінити запис")
	assert.Contains(t, reply.Text, "скасовано")

	active, err := env.repo.ListActive(ctx, "2025-07-18")
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, []string{"tg:100"}, env.reminders.cancelled)
}

func TestCancelWithoutBooking(t *testing.T) {
	env := newTestEnv(t)
	reply := env.send(t, "tg:100", "відмінити запис")
	assert.Contains(t, reply.Text, "немає активних")
}

func TestCancelMidDialogueDiscardsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "відмінити запис")

	_, exists, err := env.states.Get(ctx, "tg:100")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBackStepsOneQuestionEarlier(t *testing.T) {
	env := newTestEnv(t)
	env.send(t, "tg:100", "start")
	env.send(t, "tg:100", "Олена")
	env.send(t, "tg:100", "Стрижка")

	reply := env.send(t, "tg:100", "назад")
	assert.Contains(t, reply.Buttons, "Стрижка")

	state, _, _ := env.states.Get(context.Background(), "tg:100")
	assert.Equal(t, StepAwaitingProcedure, state.Step)
	assert.Empty(t, state.Procedure)
}

func TestEventWithoutClientIDRejected(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.machine.Handle(context.Background(), Event{Kind: KindMessage, Text: "start"})
	assert.Error(t, err)
}
