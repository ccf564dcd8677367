package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"appletcore/internal/infra/persistence/memory"
	"appletcore/pkg/domain"
)

const ownerID = "owner-1"

func selectItem(name string, opts ...domain.Option) domain.Item {
	return domain.Item{
		Name:           name,
		Question:       domain.LocalizedText{"en": name + "?"},
		ResponseType:   domain.ResponseSingleSelect,
		ResponseValues: &domain.SelectionValues{Options: opts},
		Config:         &domain.SingleSelectionConfig{},
	}
}

func textItem(name string) domain.Item {
	return domain.Item{Name: name, Question: domain.LocalizedText{"en": name}, ResponseType: domain.ResponseText, Config: &domain.TextConfig{}}
}

func option(id, text string, value int) domain.Option {
	return domain.Option{ID: id, Text: text, Value: value}
}

func equalTo(source, optionValue string) *domain.ConditionalLogic {
	return &domain.ConditionalLogic{Match: domain.MatchAll, Conditions: []domain.Condition{{
		ItemName: source,
		Type:     domain.ConditionEqualToOption,
		Payload:  domain.ConditionPayload{OptionValue: optionValue},
	}}}
}

// minimalRequest is the S1 applet: one activity with one single-select item
// carrying two options.
func minimalRequest() domain.AppletRequest {
	return domain.AppletRequest{
		DisplayName: "A",
		Activities: []domain.ActivityRequest{{
			Key:   "act1",
			Name:  "act1",
			Items: []domain.Item{selectItem("q1", option("o1", "o1", 0), option("o2", "o2", 1))},
		}},
	}
}

// withFlow adds a second activity and a flow over both activities.
func withFlow(req domain.AppletRequest) domain.AppletRequest {
	req.Activities = append(req.Activities, domain.ActivityRequest{
		Key:   "act2",
		Name:  "act2",
		Items: []domain.Item{textItem("notes")},
	})
	req.Flows = append(req.Flows, domain.FlowRequest{
		Name:  "morning",
		Items: []domain.FlowItemRequest{{ActivityKey: "act1"}, {ActivityKey: "act2"}},
	})
	return req
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	svc   *Service
	store *memory.Store
	clock *testClock
}

func newHarness(t *testing.T, opts ...Option) harness {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	clock := newTestClock()
	base := []Option{WithClock(clock), WithLogger(discardLogger{})}
	return harness{svc: NewService(store, append(base, opts...)...), store: store, clock: clock}
}

func (h harness) create(t *testing.T, req domain.AppletRequest) domain.AppletFull {
	t.Helper()
	full, _, err := h.svc.CreateApplet(context.Background(), ownerID, req)
	require.NoError(t, err)
	return full
}

func (h harness) update(t *testing.T, full domain.AppletFull, mutate func(*domain.AppletRequest)) domain.AppletFull {
	t.Helper()
	req := requestOf(full)
	if mutate != nil {
		mutate(&req)
	}
	next, _, err := h.svc.UpdateApplet(context.Background(), full.ID, ownerID, req, "")
	require.NoError(t, err)
	return next
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *captureLogger) Debug(string, ...any) {}

func (l *captureLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *captureLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(append([]any{msg}, args...)...))
}

func (l *captureLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprint(append([]any{msg}, args...)...))
}
