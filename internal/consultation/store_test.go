package consultation

import (
	"fmt"
	"testing"
	"time"

	"github.com/rbright/tandem/internal/domain"
	"github.com/rbright/tandem/internal/fault"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	return NewStore(WithClock(clock.Now)), clock
}

var enYo = domain.LanguagePair{Provider: domain.LanguageEnglish, Patient: domain.LanguageYoruba}

func TestOpenSucceedsOnlyForDistinctLanguages(t *testing.T) {
	for _, provider := range domain.Languages() {
		for _, patient := range domain.Languages() {
			t.Run(fmt.Sprintf("%s-%s", provider, patient), func(t *testing.T) {
				store, _ := newTestStore()
				session, err := store.Open(domain.LanguagePair{Provider: provider, Patient: patient})
				if provider == patient {
					require.ErrorIs(t, err, fault.ErrInvalidConfiguration)
					require.False(t, store.HasCurrent())
					return
				}
				require.NoError(t, err)
				require.NotEmpty(t, session.ID)
				require.Equal(t, DefaultTitle, session.Title)
				require.True(t, store.HasCurrent())
			})
		}
	}
}

func TestOpenRejectsUnsupportedLanguage(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Open(domain.LanguagePair{Provider: "fr", Patient: domain.LanguageYoruba})
	require.ErrorIs(t, err, fault.ErrInvalidConfiguration)
	require.False(t, store.HasCurrent())
}

func TestOpenRejectsSecondCurrentSession(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Open(enYo)
	require.NoError(t, err)

	_, err = store.Open(domain.LanguagePair{Provider: domain.LanguageHausa, Patient: domain.LanguageIgbo})
	require.Error(t, err)
}

func TestAppendPreservesOrderAndAssignsIDs(t *testing.T) {
	store, clock := newTestStore()
	_, err := store.Open(enYo)
	require.NoError(t, err)

	first, err := store.Append(domain.Message{Speaker: domain.SpeakerProvider, OriginalText: "one"})
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := store.Append(domain.Message{Speaker: domain.SpeakerPatient, OriginalText: "two"})
	require.NoError(t, err)
	third, err := store.Append(domain.Message{ID: "fixed", Speaker: domain.SpeakerProvider, OriginalText: "three"})
	require.NoError(t, err)

	require.NotEmpty(t, first.ID)
	require.NotEqual(t, first.ID, second.ID)
	require.Less(t, first.ID, second.ID, "message ids are time ordered")
	require.Equal(t, "fixed", third.ID)
	require.Equal(t, clock.now, second.CreatedAt)

	current, ok := store.Current()
	require.True(t, ok)
	require.Len(t, current.Messages, 3)
	require.Equal(t, []string{"one", "two", "three"}, []string{
		current.Messages[0].OriginalText,
		current.Messages[1].OriginalText,
		current.Messages[2].OriginalText,
	})
}

func TestAppendWithoutSessionFails(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Append(domain.Message{OriginalText: "hello"})
	require.ErrorIs(t, err, fault.ErrNoActiveSession)
}

func TestCloseComputesWallClockDurationIndependentOfMessages(t *testing.T) {
	for _, count := range []int{1, 5} {
		t.Run(fmt.Sprintf("%d messages", count), func(t *testing.T) {
			store, clock := newTestStore()
			opened, err := store.Open(enYo)
			require.NoError(t, err)

			for i := 0; i < count; i++ {
				_, err := store.Append(domain.Message{OriginalText: fmt.Sprintf("m%d", i)})
				require.NoError(t, err)
			}
			clock.Advance(83 * time.Second)

			closed, err := store.Close()
			require.NoError(t, err)
			require.Equal(t, opened.ID, closed.ID)
			require.EqualValues(t, 83, closed.DurationSeconds)
			require.False(t, store.HasCurrent())

			history := store.History()
			require.Len(t, history, 1)
			require.Equal(t, closed.ID, history[0].ID)
		})
	}
}

func TestCloseWithoutSessionFails(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Close()
	require.ErrorIs(t, err, fault.ErrNoActiveSession)
}

func TestCloseEmptySessionIsForbidden(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Open(enYo)
	require.NoError(t, err)

	_, err = store.Close()
	require.ErrorIs(t, err, fault.ErrEmptySession)
	require.True(t, store.HasCurrent())
	require.Empty(t, store.History())
}

func TestDiscardArchivesOnlyNonEmptySessions(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Open(enYo)
	require.NoError(t, err)

	_, archived := store.Discard()
	require.False(t, archived)
	require.False(t, store.HasCurrent())
	require.Empty(t, store.History())

	_, err = store.Open(enYo)
	require.NoError(t, err)
	_, err = store.Append(domain.Message{OriginalText: "kept"})
	require.NoError(t, err)

	session, archived := store.Discard()
	require.True(t, archived)
	require.Len(t, session.Messages, 1)
	require.Len(t, store.History(), 1)
}

func TestHistoryKeepsInsertionOrderAndDeleteLeavesCurrent(t *testing.T) {
	store, _ := newTestStore()
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		session, err := store.Open(enYo)
		require.NoError(t, err)
		_, err = store.Append(domain.Message{OriginalText: "x"})
		require.NoError(t, err)
		_, err = store.Close()
		require.NoError(t, err)
		ids = append(ids, session.ID)
	}
	current, err := store.Open(enYo)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ids[1]))
	history := store.History()
	require.Len(t, history, 2)
	require.Equal(t, ids[0], history[0].ID)
	require.Equal(t, ids[2], history[1].ID)

	require.Error(t, store.Delete(current.ID))
	still, ok := store.Current()
	require.True(t, ok)
	require.Equal(t, current.ID, still.ID)
}

func TestSnapshotsDoNotAliasStoreState(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Open(enYo)
	require.NoError(t, err)
	_, err = store.Append(domain.Message{OriginalText: "original"})
	require.NoError(t, err)

	snapshot, _ := store.Current()
	snapshot.Messages[0].OriginalText = "mutated"

	again, _ := store.Current()
	require.Equal(t, "original", again.Messages[0].OriginalText)
}
