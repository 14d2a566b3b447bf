package plugreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldKeyed struct {
	MicroscopeType string
}

type methodKeyed struct{}

func (methodKeyed) MicroscopeType() string { return "from-method" }

type badMethodKeyed struct{}

func (badMethodKeyed) MicroscopeType(prefix string) string { return prefix }

type intKeyed struct {
	MicroscopeType int
}

type embeddedBase struct {
	BackendType string
}

type embeddedKeyed struct {
	embeddedBase
}

func TestResolveKeyFromField(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	key, ok, err := resolveKey(fieldKeyed{MicroscopeType: "imagexpress"}, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "imagexpress", key)
}

func TestResolveKeyFromMethod(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	key, ok, err := resolveKey(methodKeyed{}, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "from-method", key)
}

func TestResolveKeyFollowsEmbedding(t *testing.T) {
	cfg := &Config{KeyAttribute: "BackendType"}

	// Promoted fields of embedded types resolve like inherited attributes.
	key, ok, err := resolveKey(embeddedKeyed{embeddedBase{BackendType: "disk"}}, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "disk", key)
}

func TestResolveKeyPointerCandidate(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	key, ok, err := resolveKey(&fieldKeyed{MicroscopeType: "opera"}, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "opera", key)
}

func TestResolveKeyMissingAttributeIsNoKey(t *testing.T) {
	cfg := &Config{KeyAttribute: "NoSuchAttribute"}

	_, ok, err := resolveKey(fieldKeyed{MicroscopeType: "x"}, cfg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveKeyEmptyStringIsNoKey(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	_, ok, err := resolveKey(fieldKeyed{}, cfg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveKeyNonStringAttributeFails(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	_, _, err := resolveKey(intKeyed{MicroscopeType: 7}, cfg)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "MicroscopeType", confErr.Attribute)
}

func TestResolveKeyBadMethodSignatureFails(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	_, _, err := resolveKey(badMethodKeyed{}, cfg)
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestResolveKeyExtractorIsAuthoritative(t *testing.T) {
	// The extractor wins even when the key attribute is set.
	cfg := &Config{
		KeyAttribute: "MicroscopeType",
		KeyExtractor: func(name string, _ any) (string, bool) { return "extracted", true },
	}

	key, ok, err := resolveKey(fieldKeyed{MicroscopeType: "ignored"}, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "extracted", key)

	// Including when it declines to produce a key.
	cfg.KeyExtractor = func(string, any) (string, bool) { return "", false }
	_, ok, err = resolveKey(fieldKeyed{MicroscopeType: "ignored"}, cfg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveKeyNilPointerIsNoKey(t *testing.T) {
	cfg := &Config{KeyAttribute: "MicroscopeType"}

	var candidate *fieldKeyed
	_, ok, err := resolveKey(candidate, cfg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuffixExtractor(t *testing.T) {
	extract := SuffixExtractor("Handler")

	tests := []struct {
		name string
		want string
	}{
		{"ImageXpressHandler", "imagexpress"},
		{"OperaPhenixHandler", "operaphenix"},
		{"NoSuffix", "nosuffix"},
	}
	for _, tt := range tests {
		key, ok := extract(tt.name, nil)
		require.True(t, ok, tt.name)
		assert.Equal(t, tt.want, key)
	}
}

func TestLookupAttrSkipsUnexportedField(t *testing.T) {
	type hidden struct {
		kind string
	}

	_, found, err := lookupAttr(hidden{kind: "x"}, "kind")
	require.NoError(t, err)
	assert.False(t, found)
}
