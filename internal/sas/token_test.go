package sas

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testPrimaryKey = "z4DNiu1ILV0VJ9fccvzv+E5jJlkoSER9LcCw6H38mpA"

var testNow = time.Date(2024, time.March, 9, 12, 30, 0, 0, time.UTC)

func fixedBuilder() Builder {
	return Builder{Now: func() time.Time { return testNow }}
}

func referenceSignature(t *testing.T, primaryKey, message string) string {
	t.Helper()

	key, err := base64.RawStdEncoding.DecodeString(primaryKey)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestBuilder_Create(t *testing.T) {
	t.Parallel()

	t.Run("device token", func(t *testing.T) {
		t.Parallel()

		token, err := fixedBuilder().Create(Device{ID: "testingdevice"}, testPrimaryKey, 200, "azuretesthub")
		require.NoError(t, err)

		require.Equal(t, "azuretesthub.azure-devices.net%2Fdevices%2Ftestingdevice", token.Resource)
		require.Equal(t, testNow.AddDate(0, 0, 200).Unix(), token.Expiry)
		require.NotEmpty(t, token.Signature)
		require.Empty(t, token.KeyName)

		want := referenceSignature(t, testPrimaryKey, token.Resource+"\n"+strconv.FormatInt(token.Expiry, 10))
		require.Equal(t, want, token.Signature)

		require.Equal(t,
			"SharedAccessSignature sr=azuretesthub.azure-devices.net%2Fdevices%2Ftestingdevice"+
				"&sig="+url.QueryEscape(want)+
				"&se="+strconv.FormatInt(token.Expiry, 10),
			token.String(),
		)
	})

	t.Run("device id is escaped", func(t *testing.T) {
		t.Parallel()

		token, err := fixedBuilder().Create(Device{ID: "floor 1/sensor"}, testPrimaryKey, 1, "hub")
		require.NoError(t, err)
		require.Equal(t, "hub.azure-devices.net%2Fdevices%2Ffloor+1%2Fsensor", token.Resource)
	})

	t.Run("reserved characters round trip", func(t *testing.T) {
		t.Parallel()

		for _, tc := range []struct {
			hub      string
			deviceID string
			resource string
		}{
			{hub: "hub", deviceID: "a&b", resource: "hub.azure-devices.net%2Fdevices%2Fa%26b"},
			{hub: "hub", deviceID: "a+b=c", resource: "hub.azure-devices.net%2Fdevices%2Fa%2Bb%3Dc"},
			{hub: "hub", deviceID: "id:@$,", resource: "hub.azure-devices.net%2Fdevices%2Fid%3A%40%24%2C"},
			{hub: "h&x", deviceID: "d1", resource: "h%26x.azure-devices.net%2Fdevices%2Fd1"},
		} {
			token, err := fixedBuilder().Create(Device{ID: tc.deviceID}, testPrimaryKey, 1, tc.hub)
			require.NoError(t, err)
			require.Equal(t, tc.resource, token.Resource)

			parsed, err := Parse(token.String())
			require.NoError(t, err, tc.deviceID)
			require.Equal(t, token, parsed)
			require.NoError(t, Verify(parsed, testPrimaryKey, testNow))
		}

		token, err := fixedBuilder().Create(Service{Policy: "p"}, testPrimaryKey, 1, "h&x")
		require.NoError(t, err)
		require.Equal(t, "h%26x.azure-devices.net", token.Resource)
		parsed, err := Parse(token.String())
		require.NoError(t, err)
		require.Equal(t, token, parsed)
	})

	t.Run("service token", func(t *testing.T) {
		t.Parallel()

		token, err := fixedBuilder().Create(Service{Policy: "iothubowner"}, testPrimaryKey, 1, "azuretesthub")
		require.NoError(t, err)

		require.Equal(t, "azuretesthub.azure-devices.net", token.Resource)
		require.Equal(t, "iothubowner", token.KeyName)
		require.Equal(t,
			referenceSignature(t, testPrimaryKey, "azuretesthub.azure-devices.net\n"+strconv.FormatInt(token.Expiry, 10)),
			token.Signature,
		)
		require.True(t, strings.HasSuffix(token.String(), "&skn=iothubowner"))
	})

	t.Run("deterministic for a fixed clock", func(t *testing.T) {
		t.Parallel()

		a, err := fixedBuilder().Create(Device{ID: "d1"}, testPrimaryKey, 7, "hub")
		require.NoError(t, err)
		b, err := fixedBuilder().Create(Device{ID: "d1"}, testPrimaryKey, 7, "hub")
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("expiry boundaries", func(t *testing.T) {
		t.Parallel()

		zero, err := fixedBuilder().Create(Device{ID: "d1"}, testPrimaryKey, 0, "hub")
		require.NoError(t, err)
		require.Equal(t, testNow.Unix(), zero.Expiry)

		past, err := fixedBuilder().Create(Device{ID: "d1"}, testPrimaryKey, -1, "hub")
		require.NoError(t, err)
		require.Less(t, past.Expiry, testNow.Unix())
		require.Equal(t, testNow.Unix()-86400, past.Expiry)

		farPast, err := Builder{Now: func() time.Time { return time.Unix(0, 0) }}.Create(Device{ID: "d1"}, testPrimaryKey, -2, "hub")
		require.NoError(t, err)
		require.Equal(t, int64(-2*86400), farPast.Expiry)
		require.Contains(t, farPast.String(), "&se=-172800")
	})

	t.Run("clock is read once", func(t *testing.T) {
		t.Parallel()

		calls := 0
		b := Builder{Now: func() time.Time {
			calls++
			return testNow
		}}
		_, err := b.Create(Device{ID: "d1"}, testPrimaryKey, 1, "hub")
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("invalid key fails before signing", func(t *testing.T) {
		t.Parallel()

		calls := 0
		b := Builder{Now: func() time.Time {
			calls++
			return testNow
		}}
		token, err := b.Create(Device{ID: "testingdevice"}, "not-valid-base64!!", 200, "azuretesthub")
		require.Nil(t, token)

		var invalid *PrimaryKeyInvalidError
		require.ErrorAs(t, err, &invalid)
		var decodeErr *KeyDecodeError
		require.ErrorAs(t, invalid.Err, &decodeErr)
		require.Zero(t, calls)
	})

	t.Run("invalid key wins over missing fields", func(t *testing.T) {
		t.Parallel()

		_, err := fixedBuilder().Create(Device{}, "", 1, "")
		require.ErrorIs(t, err, ErrKeyLengthInvalid)
		require.NotErrorIs(t, err, ErrMissingField)
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()

		for name, tc := range map[string]struct {
			kind  Kind
			hub   string
			field string
		}{
			"device id":   {kind: Device{}, hub: "hub", field: "device id"},
			"policy":      {kind: Service{}, hub: "hub", field: "policy name"},
			"hub":         {kind: Device{ID: "d1"}, hub: "", field: "hub name"},
			"nil kind":    {kind: nil, hub: "hub", field: "token kind"},
			"pointer hub": {kind: &Service{Policy: "p"}, hub: "", field: "hub name"},
		} {
			t.Run(name, func(t *testing.T) {
				token, err := fixedBuilder().Create(tc.kind, testPrimaryKey, 1, tc.hub)
				require.Nil(t, token)
				require.ErrorIs(t, err, ErrMissingField)

				var missing *MissingFieldError
				require.ErrorAs(t, err, &missing)
				require.Equal(t, tc.field, missing.Field)
			})
		}
	})
}

func TestCreate_UsesWallClock(t *testing.T) {
	t.Parallel()

	before := time.Now().Unix()
	token, err := Create(Device{ID: "d1"}, testPrimaryKey, 0, "hub")
	after := time.Now().Unix()
	require.NoError(t, err)
	require.GreaterOrEqual(t, token.Expiry, before)
	require.LessOrEqual(t, token.Expiry, after)
}
