package report

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/completeness-cli/internal/model"
)

// WriteXLSX exports a run report as a spreadsheet: one sheet with the
// per-field completeness matrix, one with per-source summaries. Ops review
// the weekly cadence from these.
func WriteXLSX(rep *model.RunReport, path string) error {
	f := xlsx.NewFile()

	fields, err := f.AddSheet("Fields")
	if err != nil {
		return eris.Wrap(err, "report: add fields sheet")
	}
	header := fields.AddRow()
	for _, h := range []string{"Entity Type", "Source", "Field", "Present", "Missing", "No Attempt", "Not Applicable", "Conflicting", "Completeness", "Missing Rate"} {
		header.AddCell().SetString(h)
	}
	for _, st := range rep.FieldStats {
		row := fields.AddRow()
		row.AddCell().SetString(st.EntityType)
		src := st.SourceID
		if src == "" {
			src = "(joined)"
		}
		row.AddCell().SetString(src)
		row.AddCell().SetString(st.FieldName)
		row.AddCell().SetInt(st.Present)
		row.AddCell().SetInt(st.Missing)
		row.AddCell().SetInt(st.MissingNoAtt)
		row.AddCell().SetInt(st.NotApplicable)
		row.AddCell().SetInt(st.Conflicting)
		row.AddCell().SetFloatWithFormat(st.Completeness, "0.00%")
		row.AddCell().SetFloatWithFormat(st.MissingRate, "0.00%")
	}

	sources, err := f.AddSheet("Sources")
	if err != nil {
		return eris.Wrap(err, "report: add sources sheet")
	}
	srcHeader := sources.AddRow()
	for _, h := range []string{"Source", "Entities", "Completeness", "Type Mismatches", "Undeclared Fields"} {
		srcHeader.AddCell().SetString(h)
	}
	for _, sum := range rep.Sources {
		row := sources.AddRow()
		row.AddCell().SetString(sum.SourceID)
		row.AddCell().SetInt(sum.Entities)
		row.AddCell().SetFloatWithFormat(sum.Completeness, "0.00%")
		row.AddCell().SetInt(sum.TypeMismatches)
		row.AddCell().SetString(fmt.Sprintf("%v", sum.UndeclaredFields))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
