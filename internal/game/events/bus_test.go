package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSubscriber struct {
	id       string
	types    map[string]bool
	received []Event
}

func (s *recordingSubscriber) ID() string           { return s.id }
func (s *recordingSubscriber) HandleEvent(ev Event) { s.received = append(s.received, ev) }

func (s *recordingSubscriber) InterestedIn(t string) bool {
	if s.types == nil {
		return true
	}
	return s.types[t]
}

func TestPublishToSubscribers(t *testing.T) {
	bus := NewEventBus()
	all := &recordingSubscriber{id: "all"}
	onlyTurns := &recordingSubscriber{id: "turns", types: map[string]bool{TypeTurnCompleted: true}}
	bus.Subscribe(all)
	bus.Subscribe(onlyTurns)

	bus.Publish(NewPhaseEvent(TypeDiplomacyStarted, "g1", "diplomacy", 1))
	bus.Publish(NewTurnCompletedEvent("g1", 1, "narration", ""))

	assert.Len(t, all.received, 2)
	assert.Len(t, onlyTurns.received, 1)
	assert.Equal(t, TypeTurnCompleted, onlyTurns.received[0].Type())
}

func TestSubscribeFunc(t *testing.T) {
	bus := NewEventBus()
	var got []Event
	bus.SubscribeFunc(TypeActionRejected, func(ev Event) { got = append(got, ev) })

	bus.Publish(NewActionRejectedEvent("g1", "aurelia", "build", "insufficient gold", 2))
	bus.Publish(NewPhaseEvent(TypePlanningStarted, "g1", "planning", 2))

	assert.Len(t, got, 1)
	rejected, ok := got[0].(*ActionRejectedEvent)
	assert.True(t, ok)
	assert.Equal(t, "aurelia", rejected.CivID)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := &recordingSubscriber{id: "sub"}
	bus.Subscribe(sub)
	bus.Unsubscribe("sub")

	bus.Publish(NewPhaseEvent(TypeNarrationStarted, "g1", "narration", 1))
	assert.Empty(t, sub.received)
	assert.Zero(t, bus.GetSubscriberCount())
}

func TestPanickingSubscriberDoesNotBreakOthers(t *testing.T) {
	bus := NewEventBus()
	bus.SubscribeFunc(TypeGameWon, func(Event) { panic("boom") })
	var delivered bool
	bus.SubscribeFunc(TypeGameWon, func(Event) { delivered = true })

	bus.Publish(NewGameWonEvent("g1", "aurelia", "domination", 12))
	assert.True(t, delivered)
}
