package params

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	p := Params{
		"zbins": List{Int(0), Float(0.15), Int(1)},
		"id":    String("20200101_000000"),
		"nside": Int(128),
	}
	b, err := MarshalCanonical(p)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"20200101_000000","nside":128,"zbins":[0,0.15,1]}`, string(b))
}

func TestMarshalCanonical_Floats(t *testing.T) {
	tests := []struct {
		in   Float
		want string
	}{
		{1, "1.0"},
		{0.15, "0.15"},
		{-2.5, "-2.5"},
		{1e21, "1e+21"},
		{1e-7, "1e-07"},
		{100000, "100000.0"},
	}
	for _, tt := range tests {
		b, err := MarshalCanonical(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(b))
	}
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(math.NaN()))
	assert.Error(t, err)

	_, err = MarshalCanonical(Params{"x": Float(math.Inf(1))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestMarshalCanonical_NoHTMLEscapeAndNFC(t *testing.T) {
	b, err := MarshalCanonical(String("a<b>&c"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(b))

	// "e" + combining acute accent normalizes to the precomposed form
	b, err = MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(b))
}

func TestParse_PreservesNumberKinds(t *testing.T) {
	p, err := Parse([]byte(`{"nside": 128, "downsampling": 1.0, "zbins": [0, 0.15, 1], "max_files": null}`))
	require.NoError(t, err)

	assert.Equal(t, Int(128), p["nside"])
	assert.Equal(t, Float(1), p["downsampling"])
	assert.Equal(t, List{Int(0), Float(0.15), Int(1)}, p["zbins"])
	assert.Equal(t, Null{}, p["max_files"])
}

func TestParse_RoundTrip(t *testing.T) {
	orig := Params{
		"downsampling": Float(1),
		"nside":        Int(128),
		"code":         String("namaster"),
		"zbins":        List{Int(0), Float(0.15), Int(1)},
		"nz_max":       Null{},
		"flag":         Bool(true),
	}
	b, err := MarshalCanonical(orig)
	require.NoError(t, err)

	back, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, orig, back, "int/float distinction must survive a round trip")
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestMarshalIndent(t *testing.T) {
	b, err := MarshalIndent(Params{"nside": Int(128), "id": String("x")})
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"id\": \"x\",\n    \"nside\": 128\n}\n", string(b))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, Int(128), ParseValue("128"))
	assert.Equal(t, Float(0.15), ParseValue("0.15"))
	assert.Equal(t, List{Int(0), Float(0.15), Int(1)}, ParseValue("[0, 0.15, 1]"))
	assert.Equal(t, Null{}, ParseValue("null"))
	assert.Equal(t, Bool(true), ParseValue("true"))
	assert.Equal(t, String("namaster"), ParseValue("namaster"))
	assert.Equal(t, String("quoted"), ParseValue(`"quoted"`))
	assert.Equal(t, String("20200101_000000"), ParseValue("20200101_000000"))
	assert.Equal(t, String(""), ParseValue(""))
}

func TestFromAssignments(t *testing.T) {
	p, err := FromAssignments([]string{"nside=128", "zbins=[0,0.5,1]", "code=anafast"})
	require.NoError(t, err)
	assert.Equal(t, Int(128), p["nside"])
	assert.Equal(t, List{Int(0), Float(0.5), Int(1)}, p["zbins"])
	assert.Equal(t, String("anafast"), p["code"])

	_, err = FromAssignments([]string{"nside"})
	assert.Error(t, err)

	_, err = FromAssignments([]string{"=3"})
	assert.Error(t, err)

	_, err = FromAssignments([]string{"nside=1", "nside=2"})
	assert.Error(t, err)
}

func TestHash_Stable(t *testing.T) {
	a := Params{"nside": Int(128), "code": String("anafast")}
	b := Params{"code": String("anafast"), "nside": Int(128)}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	hc, err := Hash(a.With("nside", Int(256)))
	require.NoError(t, err)
	assert.NotEqual(t, ha, hc)
}
