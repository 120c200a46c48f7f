package profile

import (
	"reflect"

	"github.com/Veraticus/dossier/internal/model"
)

// mergePatch applies patch over stored. Set fields in the patch win; fields
// the patch leaves empty keep their stored value. Record lists and party lists
// are replaced as a whole when the patch carries any.
func mergePatch(stored, patch model.Patch) model.Patch {
	out := stored
	out.UpdatedAt = patch.UpdatedAt
	out.DocumentsCount = patch.DocumentsCount
	out.ExtractionHistory = nil

	out.PersonalData = mergeGroup(stored.PersonalData, patch.PersonalData)
	out.RealEstateData = mergeGroup(stored.RealEstateData, patch.RealEstateData)
	out.FinancialData = mergeFinancial(stored.FinancialData, patch.FinancialData)

	if len(patch.CoBuyers) > 0 {
		out.CoBuyers = patch.CoBuyers
	}
	if len(patch.CoApplicants) > 0 {
		out.CoApplicants = patch.CoApplicants
	}
	return out
}

func mergeGroup[T any](stored, patch *T) *T {
	switch {
	case patch == nil:
		return stored
	case stored == nil:
		return patch
	}
	merged := *stored
	overlay(reflect.ValueOf(&merged).Elem(), reflect.ValueOf(*patch))
	return &merged
}

// mergeFinancial keeps stored totals next to stored lists when the patch has
// no records of that kind.
func mergeFinancial(stored, patch *model.FinancialAttributes) *model.FinancialAttributes {
	merged := mergeGroup(stored, patch)
	if stored == nil || patch == nil {
		return merged
	}
	if len(patch.Salaries) == 0 {
		merged.Salaries = stored.Salaries
		merged.SalaryTotals = stored.SalaryTotals
	}
	if len(patch.Credits) == 0 {
		merged.Credits = stored.Credits
		merged.CreditTotals = stored.CreditTotals
	}
	return merged
}

// overlay copies every non-empty exported field of src into dst. Maps are
// merged key by key.
func overlay(dst, src reflect.Value) {
	for i := range src.NumField() {
		if !src.Type().Field(i).IsExported() {
			continue
		}
		sf, df := src.Field(i), dst.Field(i)
		if sf.IsZero() {
			continue
		}
		if sf.Kind() == reflect.Map && !df.IsNil() {
			m := reflect.MakeMapWithSize(df.Type(), df.Len()+sf.Len())
			iter := df.MapRange()
			for iter.Next() {
				m.SetMapIndex(iter.Key(), iter.Value())
			}
			iter = sf.MapRange()
			for iter.Next() {
				m.SetMapIndex(iter.Key(), iter.Value())
			}
			df.Set(m)
			continue
		}
		if sf.Kind() == reflect.Slice && sf.Len() == 0 {
			continue
		}
		df.Set(sf)
	}
}
