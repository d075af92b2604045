package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvins/queuepulse-data/internal/waits"
)

func intPtr(n int) *int { return &n }

// fakeEvalStore serves canned users, prefs, and sample history.
type fakeEvalStore struct {
	users   []User
	prefs   map[int][]Preference   // userID -> prefs
	history map[int][]waits.Sample // attractionID -> newest first
}

func (f *fakeEvalStore) UsersWithDeviceToken(ctx context.Context) ([]User, error) {
	return f.users, nil
}

func (f *fakeEvalStore) ActivePreferences(ctx context.Context, userID int) ([]Preference, error) {
	return f.prefs[userID], nil
}

func (f *fakeEvalStore) LatestTwo(ctx context.Context, attractionID int) ([]waits.Sample, error) {
	return f.history[attractionID], nil
}

// fakeSender records deliveries and can fail per token.
type fakeSender struct {
	mu         sync.Mutex
	sent       []sentPush
	failTokens map[string]bool
}

type sentPush struct {
	Token        string
	Notification Notification
}

func (f *fakeSender) Send(ctx context.Context, token string, n Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTokens[token] {
		return "", errors.New("unregistered token")
	}
	f.sent = append(f.sent, sentPush{Token: token, Notification: n})
	return "delivery-1", nil
}

func (f *fakeSender) sentTo(token string) []sentPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentPush
	for _, s := range f.sent {
		if s.Token == token {
			out = append(out, s)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sample(wait *int, status waits.Status, age time.Duration) waits.Sample {
	return waits.Sample{
		AttractionID: 1,
		WaitMinutes:  wait,
		Status:       status,
		FetchedAt:    time.Now().Add(-age),
	}
}

func TestThresholdRule(t *testing.T) {
	tests := []struct {
		name      string
		wait      *int
		threshold int
		wantFire  bool
	}{
		{"below threshold fires", intPtr(10), 15, true},
		{"equal to threshold fires", intPtr(15), 15, true},
		{"above threshold silent", intPtr(20), 15, false},
		{"nil wait silent", nil, 15, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeEvalStore{
				users: []User{{ID: 1, DeviceToken: "tok-1"}},
				prefs: map[int][]Preference{
					1: {{UserID: 1, AttractionID: 1, ThresholdMinutes: tt.threshold, AttractionName: "Space Mountain"}},
				},
				history: map[int][]waits.Sample{
					1: {sample(tt.wait, waits.StatusOpen, 0)},
				},
			}
			sender := &fakeSender{}
			engine := NewEngine(store, sender, 1, testLogger())

			result := engine.Tick(context.Background())

			assert.Equal(t, 1, result.UsersEvaluated)
			assert.Equal(t, 1, result.PrefsEvaluated)
			if tt.wantFire {
				require.Len(t, sender.sent, 1)
				push := sender.sent[0].Notification
				assert.Equal(t, TypeThresholdMet, push.Data["type"])
				assert.Equal(t, "1", push.Data["attraction_id"])
				assert.Contains(t, push.Title, "Space Mountain")
				assert.Equal(t, 1, result.Dispatched)
			} else {
				assert.Empty(t, sender.sent)
				assert.Zero(t, result.Dispatched)
			}
		})
	}
}

func TestThresholdFiresAgainWhileConditionHolds(t *testing.T) {
	// The threshold rule is level-triggered: every tick where the wait is
	// under the threshold dispatches again.
	store := &fakeEvalStore{
		users: []User{{ID: 1, DeviceToken: "tok-1"}},
		prefs: map[int][]Preference{
			1: {{UserID: 1, AttractionID: 1, ThresholdMinutes: 15, AttractionName: "Space Mountain"}},
		},
		history: map[int][]waits.Sample{
			1: {sample(intPtr(10), waits.StatusOpen, 0)},
		},
	}
	sender := &fakeSender{}
	engine := NewEngine(store, sender, 1, testLogger())

	engine.Tick(context.Background())
	engine.Tick(context.Background())

	assert.Len(t, sender.sent, 2)
}

func TestReopeningRule(t *testing.T) {
	tests := []struct {
		name     string
		history  []waits.Sample
		alertOn  bool
		wantFire bool
	}{
		{
			name: "closed to open fires",
			history: []waits.Sample{
				sample(intPtr(5), waits.StatusOpen, 0),
				sample(nil, waits.StatusClosed, time.Minute),
			},
			alertOn:  true,
			wantFire: true,
		},
		{
			name: "closed to down fires",
			history: []waits.Sample{
				sample(nil, waits.StatusDown, 0),
				sample(nil, waits.StatusClosed, time.Minute),
			},
			alertOn:  true,
			wantFire: true,
		},
		{
			name: "open to open silent",
			history: []waits.Sample{
				sample(intPtr(40), waits.StatusOpen, 0),
				sample(intPtr(35), waits.StatusOpen, time.Minute),
			},
			alertOn:  true,
			wantFire: false,
		},
		{
			name: "still closed silent",
			history: []waits.Sample{
				sample(nil, waits.StatusClosed, 0),
				sample(nil, waits.StatusClosed, time.Minute),
			},
			alertOn:  true,
			wantFire: false,
		},
		{
			name: "single sample silent",
			history: []waits.Sample{
				sample(intPtr(5), waits.StatusOpen, 0),
			},
			alertOn:  true,
			wantFire: false,
		},
		{
			name: "alert disabled silent",
			history: []waits.Sample{
				sample(intPtr(5), waits.StatusOpen, 0),
				sample(nil, waits.StatusClosed, time.Minute),
			},
			alertOn:  false,
			wantFire: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeEvalStore{
				users: []User{{ID: 1, DeviceToken: "tok-1"}},
				prefs: map[int][]Preference{
					// Keep the threshold below any wait so only the
					// reopening rule can dispatch here.
					1: {{UserID: 1, AttractionID: 1, ThresholdMinutes: -1, ReopeningAlert: tt.alertOn, AttractionName: "Space Mountain"}},
				},
				history: map[int][]waits.Sample{1: tt.history},
			}
			sender := &fakeSender{}
			engine := NewEngine(store, sender, 1, testLogger())

			engine.Tick(context.Background())

			if tt.wantFire {
				require.Len(t, sender.sent, 1)
				push := sender.sent[0].Notification
				assert.Equal(t, TypeReopening, push.Data["type"])
				assert.Contains(t, push.Title, "reopened")
			} else {
				assert.Empty(t, sender.sent)
			}
		})
	}
}

func TestCheckReopening(t *testing.T) {
	closed := sample(nil, waits.StatusClosed, time.Minute)
	open := sample(intPtr(5), waits.StatusOpen, 0)

	assert.True(t, CheckReopening([]waits.Sample{open, closed}))
	assert.False(t, CheckReopening([]waits.Sample{open, open}))
	assert.False(t, CheckReopening([]waits.Sample{closed, closed}))
	assert.False(t, CheckReopening([]waits.Sample{closed, open}))
	assert.False(t, CheckReopening([]waits.Sample{open}))
	assert.False(t, CheckReopening(nil))
}

func TestDispatchFailureIsolatedPerUser(t *testing.T) {
	store := &fakeEvalStore{
		users: []User{
			{ID: 1, DeviceToken: "tok-broken"},
			{ID: 2, DeviceToken: "tok-2"},
		},
		prefs: map[int][]Preference{
			1: {{UserID: 1, AttractionID: 1, ThresholdMinutes: 15, AttractionName: "Space Mountain"}},
			2: {{UserID: 2, AttractionID: 1, ThresholdMinutes: 15, AttractionName: "Space Mountain"}},
		},
		history: map[int][]waits.Sample{
			1: {sample(intPtr(10), waits.StatusOpen, 0)},
		},
	}
	sender := &fakeSender{failTokens: map[string]bool{"tok-broken": true}}
	engine := NewEngine(store, sender, 1, testLogger())

	result := engine.Tick(context.Background())

	assert.Equal(t, 2, result.UsersEvaluated)
	assert.Equal(t, 1, result.Dispatched)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "user 1")
	assert.Len(t, sender.sentTo("tok-2"), 1)
}

func TestDispatchFailureIsolatedPerPreference(t *testing.T) {
	// Both rules can fail for one attraction without blocking the user's
	// remaining preferences.
	store := &fakeEvalStore{
		users: []User{{ID: 1, DeviceToken: "tok-1"}},
		prefs: map[int][]Preference{
			1: {
				{UserID: 1, AttractionID: 1, ThresholdMinutes: 15, AttractionName: "Space Mountain"},
				{UserID: 1, AttractionID: 2, ThresholdMinutes: 15, AttractionName: "Haunted Mansion"},
			},
		},
		history: map[int][]waits.Sample{
			// No samples for attraction 1 -> skipped entirely.
			2: {sample(intPtr(5), waits.StatusOpen, 0)},
		},
	}
	sender := &fakeSender{}
	engine := NewEngine(store, sender, 1, testLogger())

	result := engine.Tick(context.Background())

	assert.Equal(t, 2, result.PrefsEvaluated)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Notification.Title, "Haunted Mansion")
	assert.Equal(t, 1, result.Dispatched)
}

func TestNoUsersNoWork(t *testing.T) {
	store := &fakeEvalStore{}
	sender := &fakeSender{}
	engine := NewEngine(store, sender, 4, testLogger())

	result := engine.Tick(context.Background())

	assert.Zero(t, result.UsersEvaluated)
	assert.Empty(t, sender.sent)
	assert.Empty(t, result.Errors)
}
