package mqtt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func stubLookup(t *testing.T, known map[string]string) {
	t.Helper()
	orig := lookupHost
	lookupHost = func(host string) ([]string, error) {
		if addr, ok := known[host]; ok {
			return []string{addr}, nil
		}
		return nil, errors.New("no such host")
	}
	t.Cleanup(func() { lookupHost = orig })
}

func TestResolveBroker_ResolvableHostUnchanged(t *testing.T) {
	stubLookup(t, map[string]string{"raspberrypi.local": "192.168.1.10"})

	got := ResolveBroker("tcp://raspberrypi.local:1883", zap.NewNop())
	assert.Equal(t, "tcp://raspberrypi.local:1883", got)
}

func TestResolveBroker_StripsLocalSuffix(t *testing.T) {
	stubLookup(t, map[string]string{"raspberrypi": "192.168.1.10"})

	got := ResolveBroker("tcp://raspberrypi.local:1883", zap.NewNop())
	assert.Equal(t, "tcp://192.168.1.10:1883", got)
}

func TestResolveBroker_FallsBackToEnv(t *testing.T) {
	stubLookup(t, nil)
	t.Setenv("BROKER_IP", "10.0.0.5")

	got := ResolveBroker("tcp://raspberrypi.local:1883", zap.NewNop())
	assert.Equal(t, "tcp://10.0.0.5:1883", got)
}

func TestResolveBroker_IPAndUnparsable(t *testing.T) {
	stubLookup(t, nil)
	t.Setenv("BROKER_IP", "")

	assert.Equal(t, "tcp://127.0.0.1:1883", ResolveBroker("tcp://127.0.0.1:1883", zap.NewNop()))
	assert.Equal(t, "not a url", ResolveBroker("not a url", zap.NewNop()))
	assert.Equal(t, "tcp://nowhere.lan:1883", ResolveBroker("tcp://nowhere.lan:1883", zap.NewNop()))
}
