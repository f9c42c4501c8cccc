package spreadsheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/JonnyShabli/registry-mailer/internal/models"
	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	Extension            = ".xlsx"
	DefaultSheetName     = "CECCAR Data"
	DefaultMaxUploadSize = 32 << 20
	exportPrefix         = "ceccar_data_"
	timestampLayout      = "20060102_150405"
)

var uploadExtensions = map[string]struct{}{
	".xlsx": {},
	".xlsm": {},
	".xltx": {},
	".xltm": {},
}

type WorkspaceInterface interface {
	Export(records []models.Record, label string) (path string, filename string, err error)
	List() ([]string, error)
	Resolve(filename string) (string, error)
	SaveUpload(r io.Reader, originalName, prefix string) (string, error)
	ReadColumn(path, column string) ([]interface{}, error)
}

type Config struct {
	ExportDir     string `yaml:"export_dir"`
	UploadDir     string `yaml:"upload_dir"`
	SheetName     string `yaml:"sheet_name"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// Workspace owns the working directory: generated exports and persisted uploads.
type Workspace struct {
	exportDir     string
	uploadDir     string
	sheetName     string
	maxUploadSize int64
	logger        logster.Logger
	now           func() time.Time
}

func NewWorkspace(cfg Config, logger logster.Logger) (*Workspace, error) {
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	for _, dir := range []string{cfg.ExportDir, cfg.UploadDir} {
		if dir == "" {
			return nil, errors.New("workspace: export and upload directories are required")
		}
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return nil, fmt.Errorf("create directory %s failed: %w", dir, err)
		}
	}
	return &Workspace{
		exportDir:     cfg.ExportDir,
		uploadDir:     cfg.UploadDir,
		sheetName:     cfg.SheetName,
		maxUploadSize: cfg.MaxUploadSize,
		logger:        logger.WithField("Layer", "Workspace"),
		now:           time.Now,
	}, nil
}

// Export writes records as a single-sheet workbook projected onto
// models.RecordColumns. Missing fields become empty cells. The file appears
// under its final name only once fully written.
func (w *Workspace) Export(records []models.Record, label string) (string, string, error) {
	filename := exportPrefix + Sanitize(label) + "_" + w.now().Format(timestampLayout) + Extension
	path := filepath.Join(w.exportDir, filename)
	tmp := filepath.Join(w.exportDir, "."+filename)

	if err := w.write(tmp, records); err != nil {
		_ = os.Remove(tmp)
		return "", "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", "", fmt.Errorf("rename export %s failed: %w", filename, err)
	}

	w.logger.Infof("exported %d records to %s", len(records), filename)
	return path, filename, nil
}

func (w *Workspace) write(path string, records []models.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), w.sheetName); err != nil {
		return fmt.Errorf("name sheet failed: %w", err)
	}
	sw, err := f.NewStreamWriter(w.sheetName)
	if err != nil {
		return fmt.Errorf("open stream writer failed: %w", err)
	}

	header := make([]interface{}, len(models.RecordColumns))
	for i, col := range models.RecordColumns {
		header[i] = col
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header failed: %w", err)
	}

	for i, rec := range records {
		row := make([]interface{}, len(models.RecordColumns))
		for j, col := range models.RecordColumns {
			row[j] = cellValue(rec[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d failed: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet failed: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook failed: %w", err)
	}
	return nil
}

func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case string, bool, int, int64, float64:
		return val
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}

// List returns the export filenames, newest first.
func (w *Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.exportDir)
	if err != nil {
		return nil, fmt.Errorf("read export directory failed: %w", err)
	}

	type file struct {
		name    string
		modTime time.Time
	}
	files := make([]file, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), Extension) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: name, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].name > files[j].name
		}
		return files[i].modTime.After(files[j].modTime)
	})

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

// Resolve maps an export filename to its path. Anything that is not a plain
// visible .xlsx name inside the export directory is reported as not found.
func (w *Workspace) Resolve(filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") ||
		!strings.EqualFold(filepath.Ext(filename), Extension) {
		return "", models.ErrFileNotFound
	}
	path := filepath.Join(w.exportDir, filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", models.ErrFileNotFound
	}
	return path, nil
}

// CheckUploadName rejects uploads that are not workbooks.
func CheckUploadName(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := uploadExtensions[ext]; !ok {
		return models.NewInputError(fmt.Sprintf("unsupported spreadsheet type %q, expected an .xlsx file", ext), nil)
	}
	return nil
}

// SaveUpload persists an uploaded workbook as <prefix>_<name> in the upload directory.
func (w *Workspace) SaveUpload(r io.Reader, originalName, prefix string) (string, error) {
	if err := CheckUploadName(originalName); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(originalName))

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	name := prefix + "_" + Sanitize(base) + ext
	path := filepath.Join(w.uploadDir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o664)
	if err != nil {
		return "", fmt.Errorf("create upload %s failed: %w", name, err)
	}

	n, err := io.Copy(out, io.LimitReader(r, w.maxUploadSize+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload %s failed: %w", name, err)
	}
	if n > w.maxUploadSize {
		_ = os.Remove(path)
		return "", models.NewInputError(fmt.Sprintf("uploaded file exceeds %d bytes", w.maxUploadSize), nil)
	}

	w.logger.Infof("upload stored as %s (%d bytes)", name, n)
	return path, nil
}

// ReadColumn returns the values below the header cell named column on the
// first sheet. Empty cells are returned as nil.
func (w *Workspace) ReadColumn(path, column string) ([]interface{}, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, models.NewInputError("cannot read the Excel file", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, models.NewInputError("the Excel file has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, models.NewInputError("cannot read the Excel file", err)
	}

	missing := models.NewInputError(fmt.Sprintf("Excel file must have a column named '%s'.", column), nil)
	if len(rows) == 0 {
		return nil, missing
	}
	idx := -1
	for i, name := range rows[0] {
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, missing
	}

	values := make([]interface{}, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if idx < len(row) && row[idx] != "" {
			values = append(values, row[idx])
			continue
		}
		values = append(values, nil)
	}
	return values, nil
}

var diacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize turns free text (region names, upload names) into a filename-safe token.
func Sanitize(s string) string {
	if folded, _, err := transform.String(diacritics, s); err == nil {
		s = folded
	}

	var b strings.Builder
	underscore := false
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.'):
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "file"
	}
	return out
}
