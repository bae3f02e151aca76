package decoder

import (
	"encoding/base64"
	"testing"
	"time"

	"senior-connect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func TestDecode_Retained(t *testing.T) {
	_, err := Decode("senior_connect/sensors/bathroom", []byte(`{"type":"PIR"}`), true, now)
	assert.ErrorIs(t, err, ErrRetained)
}

func TestDecode_Malformed(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":     `{"type":`,
		"missing type": `{"location":"Bathroom","value":"Motion Detected"}`,
		"array":        `[1,2,3]`,
		"bad image":    `{"type":"Camera","location":"Living Room Main Door","image":"***"}`,
		"empty image":  `{"type":"Camera","location":"Living Room Main Door"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode("t", []byte(payload), false, now)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestDecode_PIR(t *testing.T) {
	ev, err := Decode("senior_connect/sensors/bathroom",
		[]byte(`{"timestamp":"2025-03-01 08:00:00","type":"PIR","location":"Bathroom","value":"Motion Detected","status":"Active"}`),
		false, now)
	require.NoError(t, err)

	assert.Equal(t, models.SensorPIR, ev.SensorType)
	assert.Equal(t, "Bathroom", ev.Location)
	assert.Equal(t, "Motion Detected", ev.Value)
	assert.Equal(t, "Active", ev.Status)
	assert.Equal(t, "2025-03-01 08:00:00", ev.SensorTime)
	assert.Equal(t, now, ev.Time)
}

func TestDecode_TypeSynonyms(t *testing.T) {
	tests := map[string]models.SensorType{
		"Access":         models.SensorProximity,
		"entrance":       models.SensorProximity,
		"Human Presence": models.SensorMMWavePresence,
		" presence ":     models.SensorMMWavePresence,
		"Gas":            models.SensorUnknown,
	}
	for rawType, want := range tests {
		ev, err := Decode("t", []byte(`{"type":"`+rawType+`","location":"Living Room","value":"x"}`), false, now)
		require.NoError(t, err)
		assert.Equal(t, want, ev.SensorType, rawType)
	}
}

func TestDecode_HumidityAndTemperature(t *testing.T) {
	ev, err := Decode("t", []byte(`{"type":"Humidity","location":"Bathroom","value":"91.2%"}`), false, now)
	require.NoError(t, err)
	require.NotNil(t, ev.Numeric)
	assert.InDelta(t, 91.2, *ev.Numeric, 1e-9)

	ev, err = Decode("t", []byte(`{"type":"Temperature","location":"Bathroom","value":"24.5C"}`), false, now)
	require.NoError(t, err)
	require.NotNil(t, ev.Numeric)
	assert.InDelta(t, 24.5, *ev.Numeric, 1e-9)

	ev, err = Decode("t", []byte(`{"type":"Humidity","location":"Bathroom","value":"n/a"}`), false, now)
	require.NoError(t, err)
	assert.Nil(t, ev.Numeric)
}

func TestDecode_VitalsSynonyms(t *testing.T) {
	ev, err := Decode("senior_connect/sensors/mmwave_bedroom",
		[]byte(`{"type":"mmWave","location":"Bedroom","value":"In Bed","status":"Occupied","hr":"62","respiration_rate":4}`),
		false, now)
	require.NoError(t, err)

	assert.Equal(t, models.SensorMMWaveVitals, ev.SensorType)
	require.NotNil(t, ev.HeartRate)
	require.NotNil(t, ev.BreathRate)
	assert.Equal(t, 62.0, *ev.HeartRate)
	assert.Equal(t, 4.0, *ev.BreathRate)

	// 规范字段优先
	ev, err = Decode("t", []byte(`{"type":"mmWave","location":"Bedroom","heart_rate":80,"hb":50}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, 80.0, *ev.HeartRate)

	// 0 表示无读数
	ev, err = Decode("t", []byte(`{"type":"mmWave","location":"Bedroom","value":"Out of Bed","heart_rate":0,"breath_rate":0}`), false, now)
	require.NoError(t, err)
	assert.Nil(t, ev.HeartRate)
	assert.Nil(t, ev.BreathRate)
}

func TestDecode_BedroomStreamDetection(t *testing.T) {
	ev, err := Decode("senior_connect/sensors/mmwave_bedroom", []byte(`{"type":"mmWave","location":"Sensor 3","value":"In Bed"}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, models.SensorMMWaveVitals, ev.SensorType)

	ev, err = Decode("t", []byte(`{"type":"mmWave","location":"bedroom","value":"In Bed"}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, models.SensorMMWaveVitals, ev.SensorType)

	ev, err = Decode("t", []byte(`{"type":"mmWave","location":"Living Room","value":"PRESENCE_DETECTED"}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, models.SensorMMWavePresence, ev.SensorType)

	ev, err = Decode("t", []byte(`{"type":"mmWave","location":"Living Room","br":12}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, models.SensorMMWaveVitals, ev.SensorType)
}

func TestDecode_ValueVariants(t *testing.T) {
	ev, err := Decode("t", []byte(`{"type":"mmWave","location":"Bedroom","value":true}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, "true", ev.Value)
	assert.Equal(t, models.SignalBedIn, models.Classify(ev))

	ev, err = Decode("t", []byte(`{"type":"mmWave","location":"Bedroom","value":0}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, "0", ev.Value)
	assert.Equal(t, models.SignalBedOut, models.Classify(ev))

	ev, err = Decode("t", []byte(`{"type":"Temperature","value":"21C"}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", ev.Location)
}

func TestDecode_Camera(t *testing.T) {
	img := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff})
	ev, err := Decode("t", []byte(`{"type":"Camera","location":"Living Room Main Door","image":"`+img+`"}`), false, now)
	require.NoError(t, err)
	assert.Equal(t, models.SensorCamera, ev.SensorType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, ev.Image)
}
