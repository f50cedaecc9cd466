package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadboizxc/wakelink/wl/crypto"
	"github.com/deadboizxc/wakelink/wl/device"
)

func lanDevice() device.Descriptor {
	return device.Descriptor{
		Name:     "office-pc",
		IP:       "192.168.1.50",
		Secret:   testSecret,
		DeviceID: testDeviceID,
	}
}

func cloudDevice() device.Descriptor {
	return device.Descriptor{
		Name:     "office-pc",
		Secret:   testSecret,
		DeviceID: testDeviceID,
		APIToken: "test-token",
		HTTPURL:  "https://relay.example.org",
	}
}

func TestSelectDirectForLANDevice(t *testing.T) {
	s, err := Select(lanDevice(), ModeAuto, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Direct{}, s)
}

func TestSelectTCPRequiresAddress(t *testing.T) {
	d := lanDevice()
	d.IP = ""
	_, err := Select(d, ModeTCP, Options{})
	assert.ErrorIs(t, err, ErrMissingAddress)

	_, err = Select(d, ModeAuto, Options{})
	assert.ErrorIs(t, err, ErrMissingAddress)
}

func TestSelectRelayForCloudDevice(t *testing.T) {
	s, err := Select(cloudDevice(), ModeAuto, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Relay{}, s)
}

func TestSelectStreamWhenPreferred(t *testing.T) {
	d := cloudDevice()
	d.Protocol = "wss"
	s, err := Select(d, ModeAuto, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Stream{}, s)
}

func TestSelectExplicitModes(t *testing.T) {
	s, err := Select(cloudDevice(), ModeHTTP, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Relay{}, s)

	s, err = Select(cloudDevice(), ModeWSS, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Stream{}, s)

	s, err = Select(lanDevice(), ModeTCP, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Direct{}, s)
}

func TestSelectStreamUnavailableDegradesToRelay(t *testing.T) {
	s, err := Select(cloudDevice(), ModeWSS, Options{
		Streaming: func() bool { return false },
	})
	require.NoError(t, err)
	assert.IsType(t, &Relay{}, s)
}

func TestSelectDefaultURLsForBareCloudPreference(t *testing.T) {
	// A device stored with only a protocol preference picks up the
	// process-level relay URLs, but without any URL it is not cloud.
	d := lanDevice()
	d.Protocol = "wss"
	s, err := Select(d, ModeAuto, Options{
		DefaultHTTPURL: "https://relay.example.org",
		DefaultWSSURL:  "wss://relay.example.org",
	})
	require.NoError(t, err)
	assert.IsType(t, &Direct{}, s)
}

func TestSelectUnknownMode(t *testing.T) {
	_, err := Select(lanDevice(), Mode("carrier-pigeon"), Options{})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestSelectWeakSecret(t *testing.T) {
	d := lanDevice()
	d.Secret = "short"
	_, err := Select(d, ModeAuto, Options{})
	assert.ErrorIs(t, err, crypto.ErrWeakSecret)
}

func TestSelectDeviceIDFallsBackToName(t *testing.T) {
	d := lanDevice()
	d.DeviceID = ""
	s, err := Select(d, ModeTCP, Options{})
	require.NoError(t, err)
	assert.Equal(t, "office-pc", s.(*Direct).codec.DeviceID())
}
