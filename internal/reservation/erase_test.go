package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjst-t/go-ipmi/internal/codec"
)

type eraseLog struct {
	reserves  int
	initiates int
	polls     int
	cancel    int
	pending   int
}

func (l *eraseLog) eraser() *Eraser {
	return &Eraser{
		Reserve: func(context.Context) (uint16, error) {
			l.reserves++
			return uint16(l.reserves), nil
		},
		Clear: func(_ context.Context, _ uint16, initiate bool) (bool, error) {
			if l.cancel > 0 {
				l.cancel--
				return false, &codec.CompletionCodeError{Code: codec.CompletionCodeReservationCanceled}
			}
			if initiate {
				l.initiates++
				return false, nil
			}
			l.polls++
			if l.pending > 0 {
				l.pending--
				return false, nil
			}
			return true, nil
		},
		Poll: time.Millisecond,
	}
}

func TestErase(t *testing.T) {
	l := &eraseLog{pending: 2}
	require.NoError(t, l.eraser().Erase(context.Background()))
	assert.Equal(t, 1, l.reserves)
	assert.Equal(t, 1, l.initiates)
	assert.Equal(t, 3, l.polls)
}

func TestErase_CancelledReReserves(t *testing.T) {
	l := &eraseLog{cancel: 1}
	require.NoError(t, l.eraser().Erase(context.Background()))
	assert.Equal(t, 2, l.reserves)
	assert.Equal(t, 1, l.initiates)
}

func TestErase_Bounded(t *testing.T) {
	l := &eraseLog{pending: 1 << 30}
	e := l.eraser()
	e.MaxRetries = 4
	err := e.Erase(context.Background())
	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, ErrEraseInProgress)
	assert.Equal(t, 4, re.Attempts)
}

func TestErase_AlwaysCancelled(t *testing.T) {
	l := &eraseLog{cancel: 1 << 30}
	e := l.eraser()
	e.MaxRetries = 3
	err := e.Erase(context.Background())
	assert.True(t, codec.IsCompletionCode(err, codec.CompletionCodeReservationCanceled))
	assert.Equal(t, 4, l.reserves)
}
