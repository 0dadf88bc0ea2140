package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicrobialReadProportion_DNA(t *testing.T) {
	paired := &Table{Columns: []string{"Raw", "Trim", "hg38"}, Samples: []string{"S1"}, Data: [][]float64{{100, 90, 80}}}
	orphan := &Table{
		Columns: []string{"Trim orphan1", "Trim orphan2", "hg38 orphan1", "hg38 orphan2"},
		Samples: []string{"S1"},
		Data:    [][]float64{{0, 0, 0, 0}},
	}

	got, err := MicrobialReadProportion(paired, orphan, false)
	require.NoError(t, err)
	assert.Equal(t, DNAProportionLabels, got.Columns)
	assert.Equal(t, []string{"S1"}, got.Samples)
	// 160/180 and 160/200
	assert.Equal(t, [][]float64{{0.88889, 0.8}}, got.Data)
}

func TestMicrobialReadProportion_DNAWithOrphans(t *testing.T) {
	paired := &Table{Columns: []string{"Raw", "Trim", "hg38"}, Samples: []string{"S1", "S2"},
		Data: [][]float64{{1000, 900, 700}, {10, 0, 0}}}
	orphan := &Table{Columns: []string{"t1", "t2", "h1", "h2"}, Samples: []string{"S1", "S2"},
		Data: [][]float64{{30, 20, 15, 5}, {0, 0, 0, 0}}}

	got, err := MicrobialReadProportion(paired, orphan, false)
	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	// kept = 2*700 + 5 + 15 = 1420; trim = 1420/1850; raw = 1420/2000
	assert.Equal(t, []float64{0.76757, 0.71}, got.Data[0])
	assert.True(t, math.IsNaN(got.Data[1][0]), "zero trimmed reads")
	assert.Equal(t, 0.0, got.Data[1][1])
}

func TestMicrobialReadProportion_RNA(t *testing.T) {
	paired := &Table{Columns: []string{"Raw", "Trim", "hg38", "hg38 mRNA"}, Samples: []string{"R1"},
		Data: [][]float64{{100, 90, 80, 40}}}
	orphan := &Table{Columns: []string{"t1", "t2", "h1", "h2", "m1", "m2"}, Samples: []string{"R1"},
		Data: [][]float64{{4, 6, 3, 2, 1, 1}}}

	got, err := MicrobialReadProportion(paired, orphan, true)
	require.NoError(t, err)
	assert.Equal(t, RNAProportionLabels, got.Columns)
	// kept = 82; trim = 82/190; hg38 = 82/165; raw = 82/200
	assert.Equal(t, [][]float64{{0.43158, 0.49697, 0.41}}, got.Data)
}

func TestMicrobialReadProportion_ShapeErrors(t *testing.T) {
	paired := &Table{Columns: []string{"Raw", "Trim", "hg38"}, Samples: []string{"S1", "S2"}, Data: [][]float64{{1, 1, 1}, {1, 1, 1}}}
	orphan := &Table{Columns: []string{"a", "b", "c", "d"}, Samples: []string{"S2", "S1"}, Data: [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}}}

	_, err := MicrobialReadProportion(paired, orphan, false)
	assert.ErrorIs(t, err, ErrShapeMismatch, "sample order differs")

	orphan.Samples = []string{"S1", "S2"}
	_, err = MicrobialReadProportion(paired, orphan, true)
	assert.ErrorIs(t, err, ErrShapeMismatch, "RNA needs more columns")
}
