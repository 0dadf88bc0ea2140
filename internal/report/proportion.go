package report

import (
	"fmt"
	"math"
	"slices"
)

// Labels of the derived microbial read proportion columns.
var (
	DNAProportionLabels = []string{"hg38 / Trim", "hg38 / Raw"}
	RNAProportionLabels = []string{"hg38 mRNA / Trim", "hg38 mRNA / hg38", "hg38 mRNA / Raw"}
)

// MicrobialReadProportion derives, per sample, the fraction of reads left
// after host depletion relative to earlier filtering steps.
//
// paired columns are (Raw, Trim, hg38[, hg38 mRNA]) and orphan columns are the
// orphan pairs of each filtering step after trimming, as selected by the QC
// report. Reads surviving the last step count both mates of a pair plus both
// last orphan columns:
//
//	kept  = 2*paired[last] + orphan[last] + orphan[last-1]
//	Trim  = kept / (2*paired[1] + orphan[0] + orphan[1])
//	hg38  = kept / (2*paired[2] + orphan[2] + orphan[3])   (rna only)
//	Raw   = kept / (2*paired[0])
//
// Values are rounded to five decimals; a zero denominator yields NaN.
func MicrobialReadProportion(paired, orphan *Table, rna bool) (*Table, error) {
	if err := paired.Validate(); err != nil {
		return nil, err
	}
	if err := orphan.Validate(); err != nil {
		return nil, err
	}
	if !slices.Equal(paired.Samples, orphan.Samples) {
		return nil, fmt.Errorf("%w: paired and orphan tables list different samples", ErrShapeMismatch)
	}

	wantPaired, wantOrphan, labels := 3, 4, DNAProportionLabels
	if rna {
		wantPaired, wantOrphan, labels = 4, 6, RNAProportionLabels
	}
	if len(paired.Columns) < wantPaired || len(orphan.Columns) < wantOrphan {
		return nil, fmt.Errorf("%w: need %d paired and %d orphan columns, have %d and %d",
			ErrShapeMismatch, wantPaired, wantOrphan, len(paired.Columns), len(orphan.Columns))
	}

	out := &Table{
		Columns: append([]string(nil), labels...),
		Samples: append([]string(nil), paired.Samples...),
		Data:    make([][]float64, len(paired.Samples)),
	}
	for i := range paired.Samples {
		p, o := paired.Data[i], orphan.Data[i]
		kept := 2*p[len(p)-1] + o[len(o)-1] + o[len(o)-2]
		trim := ratio(kept, 2*p[1]+o[0]+o[1])
		raw := ratio(kept, 2*p[0])
		if rna {
			host := ratio(kept, 2*p[2]+o[2]+o[3])
			out.Data[i] = []float64{trim, host, raw}
		} else {
			out.Data[i] = []float64{trim, raw}
		}
	}
	return out, nil
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return math.Round(num/den*1e5) / 1e5
}
