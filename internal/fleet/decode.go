package fleet

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decoding errors.
var (
	ErrMissingIDColumn = errors.New("table has no rake identifier column")
	ErrMissingID       = errors.New("rake identifier is empty")
	ErrDuplicateID     = errors.New("duplicate rake identifier")
	ErrInvalidBool     = errors.New("invalid boolean")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrNegative        = errors.New("value must not be negative")
)

// Canonical column names, matching the fleet backend's field names.
const (
	ColumnID                = "train_id"
	ColumnRollingStockFC    = "fc_rs"
	ColumnSignallingFC      = "fc_sig"
	ColumnTelecomFC         = "fc_tel"
	ColumnOpenJobs          = "open_jobs"
	ColumnBrandingShortfall = "branding_shortfall"
	ColumnMileage           = "mileage_km"
	ColumnCleaningDue       = "cleaning_due"
	ColumnStablingPenalty   = "stabling_penalty"
)

// columnAliases maps normalized header spellings to canonical column names.
var columnAliases = map[string]string{
	"train_id":                 ColumnID,
	"trainset_id":              ColumnID,
	"rake_id":                  ColumnID,
	"rake":                     ColumnID,
	"id":                       ColumnID,
	"fc_rs":                    ColumnRollingStockFC,
	"rolling_stock_fc":         ColumnRollingStockFC,
	"fc_sig":                   ColumnSignallingFC,
	"signalling_fc":            ColumnSignallingFC,
	"fc_tel":                   ColumnTelecomFC,
	"telecom_fc":               ColumnTelecomFC,
	"open_jobs":                ColumnOpenJobs,
	"open_job_cards":           ColumnOpenJobs,
	"job_cards":                ColumnOpenJobs,
	"branding_shortfall":       ColumnBrandingShortfall,
	"branding_shortfall_hours": ColumnBrandingShortfall,
	"mileage_km":               ColumnMileage,
	"mileage":                  ColumnMileage,
	"cleaning_due":             ColumnCleaningDue,
	"stabling_penalty":         ColumnStablingPenalty,
}

// RowError describes why one data row could not be decoded.
// Row is the zero-based index into the data rows (header excluded).
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// NormalizeColumn lowercases a header and folds spaces and dashes to
// underscores so "Open Jobs" and "open-jobs" resolve to the same column.
func NormalizeColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	if canonical, ok := columnAliases[h]; ok {
		return canonical
	}
	return h
}

// Decode converts positional table rows into rakes.
//
// Rows that fail to decode are skipped and reported as RowErrors; the rest
// are returned in input order. If no identifier column exists the whole table
// is rejected with ErrMissingIDColumn.
func Decode(headers []string, rows [][]string) ([]Rake, []error) {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		name := NormalizeColumn(h)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	if _, ok := index[ColumnID]; !ok {
		return nil, []error{ErrMissingIDColumn}
	}

	var (
		rakes []Rake
		errs  []error
		seen  = make(map[string]bool, len(rows))
	)
	for n, row := range rows {
		get := func(column string) string {
			i, ok := index[column]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		r, err := decodeRow(get)
		if err != nil {
			err.Row = n
			errs = append(errs, err)
			continue
		}
		if seen[r.ID] {
			errs = append(errs, &RowError{Row: n, Column: ColumnID, Err: fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)})
			continue
		}
		seen[r.ID] = true
		rakes = append(rakes, r)
	}
	return rakes, errs
}

func decodeRow(get func(string) string) (Rake, *RowError) {
	var r Rake

	r.ID = get(ColumnID)
	if r.ID == "" {
		return r, &RowError{Column: ColumnID, Err: ErrMissingID}
	}

	fc := map[Subsystem]string{
		RollingStock: ColumnRollingStockFC,
		Signalling:   ColumnSignallingFC,
		Telecom:      ColumnTelecomFC,
	}
	for _, s := range Subsystems() {
		v, err := ParseBool(get(fc[s]))
		if err != nil {
			return r, &RowError{Column: fc[s], Err: err}
		}
		r.Certified[s] = v
	}

	var err error
	if r.OpenJobCards, err = parseCount(get(ColumnOpenJobs)); err != nil {
		return r, &RowError{Column: ColumnOpenJobs, Err: err}
	}
	if r.BrandingShortfallHours, err = parseMeasure(get(ColumnBrandingShortfall)); err != nil {
		return r, &RowError{Column: ColumnBrandingShortfall, Err: err}
	}
	if r.MileageKm, err = parseMeasure(get(ColumnMileage)); err != nil {
		return r, &RowError{Column: ColumnMileage, Err: err}
	}
	if r.CleaningDue, err = ParseBool(get(ColumnCleaningDue)); err != nil {
		return r, &RowError{Column: ColumnCleaningDue, Err: err}
	}
	if r.StablingPenalty, err = parseCount(get(ColumnStablingPenalty)); err != nil {
		return r, &RowError{Column: ColumnStablingPenalty, Err: err}
	}
	return r, nil
}

// ParseBool accepts the spellings found in depot exports. Empty means false.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "ok", "valid":
		return true, nil
	case "false", "f", "no", "n", "0", "missing", "expired", "":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Spreadsheets often export integers as "3.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegative, n)
	}
	return n, nil
}

func parseMeasure(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %v", ErrNegative, f)
	}
	return f, nil
}
