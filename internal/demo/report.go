package demo

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/upload"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// ReportAction exports the catalog as CSV and accepts supplier price sheets
type ReportAction struct {
	action.BaseAction
	app *App

	Year  int
	Sheet *upload.FileBean
}

func (a *App) reportDescriptor() *action.Descriptor {
	return &action.Descriptor{
		Name:    "report",
		Binding: "/report/{year=2025}.csv",
		New:     func() action.ActionBean { return &ReportAction{app: a} },
		Handlers: []action.Handler{
			action.Handle("download", (*ReportAction).Download).AsDefault(),
			action.Handle("upload", (*ReportAction).Upload).Only("POST"),
		},
		Validations: []validation.Metadata{
			{Property: "year", MinValue: validation.Float(2000), MaxValue: validation.Float(2100)},
			{Property: "sheet", Required: true, On: []string{"upload"}},
		},
	}
}

// Download streams the catalog
func (r *ReportAction) Download() (action.Resolution, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"year", "id", "name", "price"}); err != nil {
		return nil, err
	}
	for _, widget := range r.app.Catalog.List() {
		row := []string{
			strconv.Itoa(r.Year),
			strconv.Itoa(widget.ID),
			widget.Name,
			strconv.FormatFloat(widget.Price, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return action.Stream("text/csv", &buf).Attachment(fmt.Sprintf("catalog-%d.csv", r.Year)), nil
}

// Upload stores the submitted sheet
func (r *ReportAction) Upload() (action.Resolution, error) {
	key := fmt.Sprintf("%d/%s", r.Year, r.Sheet.FileName)
	if r.app.Uploads != nil {
		if err := r.Sheet.Save(r.Context().Ctx(), r.app.Uploads, key); err != nil {
			return nil, err
		}
	} else {
		dir := r.app.UploadDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "stripes-uploads")
		}
		if err := r.Sheet.SaveTo(filepath.Join(dir, filepath.FromSlash(key))); err != nil {
			return nil, err
		}
	}
	return action.Created(map[string]interface{}{"key": key, "size": r.Sheet.Size}), nil
}
