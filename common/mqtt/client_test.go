package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// stubToken 可控的 mqtt.Token
type stubToken struct {
	done chan struct{}
	err  error
}

func (s *stubToken) Wait() bool {
	<-s.done
	return true
}

func (s *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (s *stubToken) Done() <-chan struct{} { return s.done }
func (s *stubToken) Error() error          { return s.err }

func completedToken(err error) *stubToken {
	t := &stubToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func TestWaitToken(t *testing.T) {
	assert.NoError(t, waitToken(completedToken(nil), time.Second))

	refused := errors.New("not authorized")
	assert.ErrorIs(t, waitToken(completedToken(refused), time.Second), refused)

	// 未收到 SUBACK 不能当作成功
	pending := &stubToken{done: make(chan struct{})}
	err := waitToken(pending, 10*time.Millisecond)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
