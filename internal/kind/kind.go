// Package kind describes the two result stores kept per simulation analysis:
// theory-vs-catalog power spectra (CCL) and shear maps with their spectra.
package kind

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/clqa/internal/params"
)

// Computation features a shear run can be asked to enable.
const (
	FeatureCls   = "cls"
	FeatureKappa = "kappa"
)

// Kind is one result store flavour.
type Kind struct {
	// Name is the CLI and config name.
	Name string

	// Dir is the store directory inside a simulation's analysis directory.
	Dir string

	// Definition names the parameter schema.
	Definition string

	// Quantities lists every artifact a computation of this kind can produce.
	Quantities []string

	needs func(quantity string) []string
}

var (
	// CCL spectra, shot noise and N(z) computed for a whole simulation.
	CCL = Kind{
		Name:       "ccl",
		Dir:        "ccl_data",
		Definition: "#CCL",
		Quantities: []string{
			"pairs", "shotnoise", "nz_tot", "z_nz",
			"cl_dd_d", "cl_dd_t", "cl_dm_d", "cl_dm_t",
			"cl_md_d", "cl_md_t", "cl_mm_d", "cl_mm_t",
			"cl_bb_d", "cl_mb_d", "cl_db_d",
		},
		needs: func(string) []string { return nil },
	}

	// Shear maps, optionally with pseudo-Cls and convergence.
	Shear = Kind{
		Name:       "shear",
		Dir:        "shear_data",
		Definition: "#Shear",
		Quantities: []string{
			"mp_e1", "mp_e2", "mp_d", "mp_db", "mp_E", "mp_B",
			"cld_dd", "cld_ee", "cld_bb", "cld_de", "cld_eb", "cld_db", "ld",
			"mp_k", "cld_kk", "cld_kd",
		},
		needs: shearNeeds,
	}
)

func shearNeeds(q string) []string {
	switch {
	case q == "mp_k":
		return []string{FeatureKappa}
	case q == "cld_kk" || q == "cld_kd":
		return []string{FeatureCls, FeatureKappa}
	case strings.HasPrefix(q, "cl") || q == "ld" || q == "lt":
		return []string{FeatureCls}
	}
	return nil
}

// All returns every kind.
func All() []Kind {
	return []Kind{CCL, Shear}
}

// Lookup returns the kind with the given name.
func Lookup(name string) (Kind, error) {
	for _, k := range All() {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("unknown kind %q (want ccl or shear)", name)
}

// Produces reports whether quantity is one of the kind's artifacts.
func (k Kind) Produces(quantity string) bool {
	for _, q := range k.Quantities {
		if q == quantity {
			return true
		}
	}
	return false
}

// Needs is the set of optional computation features required to produce a
// set of quantities.
type Needs map[string]bool

// Features returns the enabled features, sorted.
func (n Needs) Features() []string {
	out := []string{}
	for f, on := range n {
		if on {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Needs returns the features the computation must enable so that every
// quantity is produced.
func (k Kind) Needs(quantities ...string) Needs {
	n := Needs{}
	if k.needs == nil {
		return n
	}
	for _, q := range quantities {
		for _, f := range k.needs(q) {
			n[f] = true
		}
	}
	return n
}

// RedshiftBins splits [minz, maxz) into n equal slices and returns one shear
// query per slice.
func RedshiftBins(minz, maxz float64, n int) ([]params.Params, error) {
	if n <= 0 {
		return nil, fmt.Errorf("redshift bins: need at least one bin, got %d", n)
	}
	if !(maxz > minz) {
		return nil, fmt.Errorf("redshift bins: maxz %g must exceed minz %g", maxz, minz)
	}

	step := (maxz - minz) / float64(n)
	bins := make([]params.Params, 0, n)
	for b := 0; b < n; b++ {
		bins = append(bins, params.Params{
			"minz": params.Float(minz + float64(b)*step),
			"maxz": params.Float(minz + float64(b+1)*step),
		})
	}
	return bins, nil
}
