package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionMinutes(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	at := func(min float64) time.Time { return t0.Add(time.Duration(min * float64(time.Minute))) }
	act := func(typ string, min float64) Activity { return Activity{Type: typ, CreatedAt: at(min)} }

	tests := []struct {
		name string
		acts []Activity
		want float64
	}{
		{name: "no activity", want: 0},
		{name: "one session", acts: []Activity{act(TypeSessionStart, 0), act(TypeSessionEnd, 30)}, want: 30},
		{
			name: "two sessions, unordered input",
			acts: []Activity{act(TypeSessionEnd, 50), act(TypeSessionStart, 0), act(TypeSessionStart, 40), act(TypeSessionEnd, 10)},
			want: 20,
		},
		{
			name: "start while open is ignored",
			acts: []Activity{act(TypeSessionStart, 0), act(TypeSessionStart, 5), act(TypeSessionEnd, 15)},
			want: 15,
		},
		{name: "end without start", acts: []Activity{act(TypeSessionEnd, 5)}, want: 0},
		{
			name: "trailing open session is discarded",
			acts: []Activity{act(TypeSessionStart, 0), act(TypeSessionEnd, 10), act(TypeSessionStart, 20)},
			want: 10,
		},
		{
			name: "other types are ignored",
			acts: []Activity{act(TypeSessionStart, 0), act(TypePageView, 3), act(TypeStepCompleted, 4), act(TypeSessionEnd, 6)},
			want: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SessionMinutes(tt.acts), 1e-9)
		})
	}
}

func Test_roundMinutes(t *testing.T) {
	assert.Equal(t, 0, roundMinutes(0.4))
	assert.Equal(t, 1, roundMinutes(0.5))
	assert.Equal(t, 42, roundMinutes(41.6))
}

func TestIsValidType(t *testing.T) {
	for _, typ := range AllTypes {
		assert.True(t, IsValidType(typ), typ)
	}
	assert.False(t, IsValidType("page_view"))
	assert.False(t, IsValidType(""))
}
