package subagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snmpkit/agentx/pkg/agentx"
	"github.com/snmpkit/agentx/pkg/mib"
	"github.com/snmpkit/agentx/pkg/oid"
)

const testRoot = "1.3.6.1.4.1.12345"

func testConfig() *Config {
	return &Config{
		MasterAddress: "localhost:705",
		AgentID:       "1.3.6.1.4.1.12345.99",
		Description:   "test subagent",
	}
}

// staticUpdater publishes a fixed binding set.
type staticUpdater struct {
	values map[string]agentx.Value
}

func (u *staticUpdater) Update(_ context.Context, b *mib.Builder) error {
	for suffix, v := range u.values {
		if err := b.SetString(suffix, v); err != nil {
			return err
		}
	}

	return nil
}

// newServingSession builds an unstarted session with one region whose
// snapshot is already published.
func newServingSession(t *testing.T, values map[string]agentx.Value, handler SetHandler) (*Session, *Region) {
	t.Helper()

	s, err := NewSession(testConfig())
	require.NoError(t, err)

	r, err := s.Register(RegionConfig{
		Root:    oid.MustParse(testRoot),
		Updater: &staticUpdater{values: values},
		Handler: handler,
	})
	require.NoError(t, err)

	s.refreshRegion(context.Background(), r)
	require.NotNil(t, r.Snapshot())

	return s, r
}

func sampleValues() map[string]agentx.Value {
	return map[string]agentx.Value{
		"1.0": agentx.IntegerValue(42),
		"2.0": agentx.StringValue("hello"),
	}
}

func searchRange(start string, end string, include bool) agentx.SearchRange {
	sr := agentx.SearchRange{Start: oid.MustParse(start), Include: include}
	if end != "" {
		sr.End = oid.MustParse(end)
	}

	return sr
}

func TestHandleGet(t *testing.T) {
	s, _ := newServingSession(t, sampleValues(), nil)

	tests := []struct {
		name string
		oid  string
		want agentx.Value
	}{
		{"leaf hit", testRoot + ".1.0", agentx.IntegerValue(42)},
		{"second leaf", testRoot + ".2.0", agentx.StringValue("hello")},
		{"miss inside region", testRoot + ".3.0", agentx.NoSuchInstanceValue()},
		{"interior node", testRoot + ".1", agentx.NoSuchInstanceValue()},
		{"outside any region", "1.3.6.1.2.1.1.1.0", agentx.NoSuchObjectValue()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleGet(&agentx.Get{Ranges: []agentx.SearchRange{searchRange(tt.oid, "", false)}})

			require.Equal(t, agentx.NoAgentXError, resp.Error)
			require.Len(t, resp.VarBinds, 1)
			assert.Equal(t, tt.oid, resp.VarBinds[0].Name.String())
			assert.Equal(t, tt.want, resp.VarBinds[0].Value)
		})
	}
}

func TestHandleGetNext(t *testing.T) {
	s, _ := newServingSession(t, sampleValues(), nil)

	t.Run("advances to the next leaf", func(t *testing.T) {
		resp := s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange(testRoot+".1.0", "", false),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[0].Name.String())
		assert.Equal(t, agentx.StringValue("hello"), resp.VarBinds[0].Value)
	})

	t.Run("include returns the start itself", func(t *testing.T) {
		resp := s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange(testRoot+".1.0", "", true),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, testRoot+".1.0", resp.VarBinds[0].Name.String())
	})

	t.Run("range start below region root", func(t *testing.T) {
		resp := s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange("1.3.6.1.4.1", "", false),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, testRoot+".1.0", resp.VarBinds[0].Name.String())
	})

	t.Run("exhausted region", func(t *testing.T) {
		resp := s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange(testRoot+".2.0", "", false),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, agentx.EndOfMibViewValue(), resp.VarBinds[0].Value)
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[0].Name.String())
	})

	t.Run("end bound respected", func(t *testing.T) {
		resp := s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange(testRoot+".1.0", testRoot+".2.0", false),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, agentx.EndOfMibViewValue(), resp.VarBinds[0].Value)
	})

	t.Run("collapsed range is an exact lookup", func(t *testing.T) {
		resp := s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange(testRoot+".1.0", testRoot+".1.0", true),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, agentx.IntegerValue(42), resp.VarBinds[0].Value)

		resp = s.handleGetNext(&agentx.GetNext{Ranges: []agentx.SearchRange{
			searchRange(testRoot+".1.0", testRoot+".1.0", false),
		}})

		require.Len(t, resp.VarBinds, 1)
		assert.Equal(t, agentx.EndOfMibViewValue(), resp.VarBinds[0].Value)
	})
}

func TestHandleGetBulk(t *testing.T) {
	s, _ := newServingSession(t, sampleValues(), nil)

	t.Run("repeats until the view ends", func(t *testing.T) {
		resp := s.handleGetBulk(&agentx.GetBulk{
			MaxRepetitions: 3,
			Ranges:         []agentx.SearchRange{searchRange(testRoot+".0", "", false)},
		})

		require.Len(t, resp.VarBinds, 3)
		assert.Equal(t, testRoot+".1.0", resp.VarBinds[0].Name.String())
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[1].Name.String())
		assert.Equal(t, agentx.EndOfMibViewValue(), resp.VarBinds[2].Value)
	})

	t.Run("non-repeaters step once", func(t *testing.T) {
		resp := s.handleGetBulk(&agentx.GetBulk{
			NonRepeaters:   1,
			MaxRepetitions: 2,
			Ranges: []agentx.SearchRange{
				searchRange(testRoot+".0", "", false),
				searchRange(testRoot+".1.0", "", false),
			},
		})

		// One varbind for the non-repeater, two repetitions for the
		// repeater.
		require.Len(t, resp.VarBinds, 3)
		assert.Equal(t, testRoot+".1.0", resp.VarBinds[0].Name.String())
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[1].Name.String())
		assert.Equal(t, agentx.EndOfMibViewValue(), resp.VarBinds[2].Value)
	})

	t.Run("repetition order is range major", func(t *testing.T) {
		resp := s.handleGetBulk(&agentx.GetBulk{
			MaxRepetitions: 2,
			Ranges: []agentx.SearchRange{
				searchRange(testRoot+".0", "", false),
				searchRange(testRoot+".1", "", false),
			},
		})

		// rep1: r1 -> 1.0, r2 -> 1.0(from .1) ... rep2: r1 -> 2.0, r2 -> 2.0
		require.Len(t, resp.VarBinds, 4)
		assert.Equal(t, testRoot+".1.0", resp.VarBinds[0].Name.String())
		assert.Equal(t, testRoot+".1.0", resp.VarBinds[1].Name.String())
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[2].Name.String())
		assert.Equal(t, testRoot+".2.0", resp.VarBinds[3].Name.String())
	})
}

func TestBuildResponseGenErr(t *testing.T) {
	s, _ := newServingSession(t, sampleValues(), nil)

	vbs := []agentx.VarBind{
		{Name: oid.MustParse(testRoot + ".1.0"), Value: agentx.IntegerValue(1)},
		{Name: oid.MustParse(testRoot + ".2.0"), Value: agentx.OctetStringValue(make([]byte, agentx.MaxOctetStringLen+1))},
	}

	resp := s.buildResponse(vbs)

	assert.Equal(t, agentx.GenErr, resp.Error)
	assert.Equal(t, uint16(2), resp.Index)
	require.Len(t, resp.VarBinds, 2)

	for _, vb := range resp.VarBinds {
		assert.Equal(t, agentx.NullValue(), vb.Value)
	}
}

func TestRegisterRejectsOverlap(t *testing.T) {
	s, err := NewSession(testConfig())
	require.NoError(t, err)

	up := &staticUpdater{}

	_, err = s.Register(RegionConfig{Root: oid.MustParse(testRoot), Updater: up})
	require.NoError(t, err)

	_, err = s.Register(RegionConfig{Root: oid.MustParse(testRoot + ".1"), Updater: up})
	assert.ErrorIs(t, err, ErrRegionOverlap)

	_, err = s.Register(RegionConfig{Root: oid.MustParse("1.3.6.1.4.1"), Updater: up})
	assert.ErrorIs(t, err, ErrRegionOverlap)

	_, err = s.Register(RegionConfig{Root: oid.MustParse("1.3.6.1.4.1.54321"), Updater: up})
	assert.NoError(t, err)

	_, err = s.Register(RegionConfig{Root: oid.MustParse(testRoot)})
	assert.ErrorIs(t, err, ErrNoUpdater)
}
