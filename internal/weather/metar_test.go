package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMETAR_FullReport(t *testing.T) {
	f := ParseMETAR("PAFA 181953Z 18025G35KT 10SM BKN008 OVC020 M05/M08 A2992 RMK AO2 SLP134")

	require.NotNil(t, f.CeilingFt)
	assert.Equal(t, 800, *f.CeilingFt)
	require.NotNil(t, f.VisibilitySM)
	assert.Equal(t, 10.0, *f.VisibilitySM)
	require.NotNil(t, f.WindKts)
	assert.Equal(t, 25, *f.WindKts)
	require.NotNil(t, f.GustKts)
	assert.Equal(t, 35, *f.GustKts)
	require.NotNil(t, f.TemperatureC)
	assert.Equal(t, -5, *f.TemperatureC)
}

func TestParseMETAR_Visibility(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{name: "whole", raw: "PANC 181953Z 3SM", want: ptr(3.0)},
		{name: "fraction", raw: "PANC 181953Z 1/2SM", want: ptr(0.5)},
		{name: "mixed", raw: "PANC 181953Z 1 1/2SM", want: ptr(1.5)},
		{name: "less than", raw: "PANC 181953Z M1/4SM", want: ptr(0.25)},
		{name: "plus", raw: "PANC 181953Z P6SM", want: ptr(6.0)},
		{name: "zero denominator", raw: "PANC 181953Z 1/0SM", want: nil},
		{name: "absent", raw: "PANC 181953Z 9999", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMETAR(tt.raw).VisibilitySM)
		})
	}
}

func TestParseMETAR_CeilingUsesFirstBrokenOrOvercast(t *testing.T) {
	f := ParseMETAR("PAOM 181953Z 27010KT 5SM FEW005 SCT012 OVC045 02/01")
	require.NotNil(t, f.CeilingFt)
	assert.Equal(t, 4500, *f.CeilingFt)
}

func TestParseMETAR_NoCeilingIsUnlimited(t *testing.T) {
	f := ParseMETAR("PAOM 181953Z 27010KT 10SM FEW050 SCT120 12/01")
	assert.Nil(t, f.CeilingFt)
	require.NotNil(t, f.TemperatureC)
	assert.Equal(t, 12, *f.TemperatureC)
}

func TestParseMETAR_VariableWindWithoutGust(t *testing.T) {
	f := ParseMETAR("PALH 181953Z VRB03KT 10SM CLR 08/02")
	require.NotNil(t, f.WindKts)
	assert.Equal(t, 3, *f.WindKts)
	assert.Nil(t, f.GustKts)
}

func TestParseMETAR_IgnoresRemarks(t *testing.T) {
	f := ParseMETAR("PALH 181953Z 10SM CLR 08/02 RMK BKN003 VIS 1/2SM")
	assert.Nil(t, f.CeilingFt)
	require.NotNil(t, f.VisibilitySM)
	assert.Equal(t, 10.0, *f.VisibilitySM)
}

func TestParseMETAR_MalformedYieldsNils(t *testing.T) {
	f := ParseMETAR("garbage in, garbage out")
	assert.Nil(t, f.CeilingFt)
	assert.Nil(t, f.VisibilitySM)
	assert.Nil(t, f.WindKts)
	assert.Nil(t, f.GustKts)
	assert.Nil(t, f.TemperatureC)

	partial := ParseMETAR("PAFA 181953Z ////KT 2SM")
	assert.Nil(t, partial.WindKts)
	require.NotNil(t, partial.VisibilitySM)
	assert.Equal(t, 2.0, *partial.VisibilitySM)
}

func ptr[T any](v T) *T { return &v }
